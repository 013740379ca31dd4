package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/vncsmyrnk/tessera/internal/adapters/handler/http"
	"github.com/vncsmyrnk/tessera/internal/adapters/metrics"
	"github.com/vncsmyrnk/tessera/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/tessera/internal/adapters/session"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

const testSecret = "test-secret"

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token, _ string) (*ports.TokenPayload, error) {
	if token != "good" {
		return nil, fmt.Errorf("invalid google token")
	}
	return &ports.TokenPayload{Email: "google@example.com", Name: "Google Organizer"}, nil
}

type TestApp struct {
	Store  *memory.Store
	Server *httptest.Server
	Client *http.Client
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()

	store := memory.NewStore()
	tallyMetrics := metrics.NewTallyMetrics("tessera")

	authSvc := services.NewAuthService(store.Users(), store, stubVerifier{}, testSecret, "client", nil)
	userSvc := services.NewUserService(store.Users())
	resultSvc := services.NewResultService(store, store, nil, nil, tallyMetrics, nil)
	electionSvc := services.NewElectionService(store, store, store, resultSvc, nil)
	voteSvc := services.NewVoteService(store, store, store, session.NewJWTIssuer(testSecret, 15*time.Minute), tallyMetrics, nil)

	router := handler.NewHandler(handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, "/", "", http.SameSiteLaxMode),
		User:     handler.NewUserHandler(userSvc),
		Election: handler.NewElectionHandler(electionSvc, resultSvc),
		Vote:     handler.NewVoteHandler(voteSvc),
		Public:   handler.NewPublicHandler(electionSvc, resultSvc),
		Metrics:  tallyMetrics.Handler(),
	}, authSvc)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestApp{
		Store:  store,
		Server: server,
		Client: server.Client(),
	}
}

func (app *TestApp) createUserAndToken(t *testing.T) string {
	t.Helper()

	user := &domain.User{Email: fmt.Sprintf("org-%s@example.com", uuid.NewString()), Name: "Organizer"}
	require.NoError(t, app.Store.Users().Create(context.Background(), user))

	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"kind":  "organizer",
		"exp":   time.Now().Add(15 * time.Minute).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signedToken
}

// do sends a JSON request and decodes the JSON response into out when out
// is non-nil. It returns the status code.
func (app *TestApp) do(t *testing.T, method, path, bearer string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, app.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Code string `json:"code"`
}

func TestElectionLifecycle(t *testing.T) {
	app := setupTestApp(t)
	organizer := app.createUserAndToken(t)

	var election domain.Election
	status := app.do(t, http.MethodPost, "/api/elections", organizer, map[string]any{
		"title": "Board Election 2026",
		"mode":  "IRV",
	}, &election)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "board-election-2026", election.Slug)
	assert.Equal(t, domain.StatusDraft, election.Status)
	base := "/api/elections/" + election.ID.String()

	var errBody errorBody
	status = app.do(t, http.MethodPut, base+"/status", organizer, map[string]string{"status": "open"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "not_enough_candidates", errBody.Code)

	var candidates struct {
		Candidates []domain.Candidate `json:"candidates"`
	}
	status = app.do(t, http.MethodPut, base+"/candidates", organizer, []map[string]any{
		{"name": "Alice", "sort_index": 0},
		{"name": "Bob", "sort_index": 1},
		{"name": "Carol", "sort_index": 2},
	}, &candidates)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, candidates.Candidates, 3)
	alice, bob, carol := candidates.Candidates[0].ID, candidates.Candidates[1].ID, candidates.Candidates[2].ID

	status = app.do(t, http.MethodPut, base+"/status", organizer, map[string]string{"status": "open"}, &election)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.StatusOpen, election.Status)

	var minted struct {
		Tokens []ports.MintedToken `json:"tokens"`
		CSV    string              `json:"csv"`
	}
	status = app.do(t, http.MethodPost, base+"/tokens/mint", organizer, map[string]any{"count": 3, "labelPrefix": "member"}, &minted)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, minted.Tokens, 3)
	assert.True(t, strings.HasPrefix(minted.CSV, "token,issued_to\n"))
	assert.Contains(t, minted.CSV, minted.Tokens[0].Token+",member-1")

	var receipts []string
	for i, ranking := range [][]int64{{alice, bob}, {bob, alice}, {alice, carol}} {
		var claim struct {
			SessionToken string `json:"ballot_session_jwt"`
		}
		status = app.do(t, http.MethodPost, "/api/vote/claim", "", map[string]string{
			"slug":  election.Slug,
			"token": minted.Tokens[i].Token,
		}, &claim)
		require.Equal(t, http.StatusOK, status)
		require.NotEmpty(t, claim.SessionToken)

		var submitted struct {
			ReceiptHash string `json:"receipt_hash"`
		}
		status = app.do(t, http.MethodPost, "/api/vote/submit", "", map[string]any{
			"ballot_session_jwt": claim.SessionToken,
			"rankings":           ranking,
		}, &submitted)
		require.Equal(t, http.StatusCreated, status)
		require.Len(t, submitted.ReceiptHash, 64)
		receipts = append(receipts, submitted.ReceiptHash)

		status = app.do(t, http.MethodPost, "/api/vote/submit", "", map[string]any{
			"ballot_session_jwt": claim.SessionToken,
			"rankings":           ranking,
		}, &errBody)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "token_already_used", errBody.Code)
	}

	status = app.do(t, http.MethodPost, "/api/vote/claim", "", map[string]string{
		"slug":  election.Slug,
		"token": minted.Tokens[0].Token,
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_token", errBody.Code)

	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/results", "", nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "election_not_closed", errBody.Code)

	var stats domain.TokenStats
	status = app.do(t, http.MethodGet, base+"/tokens/stats", organizer, nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TokenStats{Total: 3, Used: 3, Unused: 0}, stats)

	var analytics ports.ElectionAnalytics
	status = app.do(t, http.MethodGet, base+"/analytics", organizer, nil, &analytics)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, analytics.BallotStats.TotalBallots)
	assert.Equal(t, 100, analytics.CompletionRate)
	assert.Equal(t, stats, analytics.TokenStats)
	require.NotEmpty(t, analytics.Timeline)

	status = app.do(t, http.MethodPut, base+"/status", organizer, map[string]string{"status": "closed"}, &election)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.StatusClosed, election.Status)

	var public ports.PublicResult
	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/results", "", nil, &public)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, public.Result)
	require.NotNil(t, public.Result.IRV)
	require.NotNil(t, public.Result.IRV.Winner)
	assert.Equal(t, alice, *public.Result.IRV.Winner)
	assert.Equal(t, 3, public.Result.TotalBallots)

	var publicRaw map[string]any
	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/results", "", nil, &publicRaw)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, publicRaw, "metadata")

	var owned ports.OwnerResult
	status = app.do(t, http.MethodGet, base+"/results", organizer, nil, &owned)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice, *owned.Result.IRV.Winner)
	assert.Equal(t, 3, owned.Metadata.TotalBallots)
	assert.Len(t, owned.Metadata.TieBreakSeed, 32)

	var receiptList ports.ReceiptList
	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/receipts", "", nil, &receiptList)
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, receipts, receiptList.Receipts)

	var lookup map[string]bool
	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/receipts/"+strings.ToUpper(receipts[1]), "", nil, &lookup)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, lookup["found"])

	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/receipts/"+strings.Repeat("0", 64), "", nil, &lookup)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, lookup["found"])

	var ballots [][]int64
	status = app.do(t, http.MethodGet, "/api/public/"+election.Slug+"/ballots.json", "", nil, &ballots)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, [][]int64{{alice, bob}, {bob, alice}, {alice, carol}}, ballots)

	var export domain.AuditExport
	status = app.do(t, http.MethodGet, base+"/audit", organizer, nil, &export)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, export.TieBreakSeed)
	assert.Equal(t, export.TieBreakSeed, owned.Metadata.TieBreakSeed)
	assert.Len(t, export.Ballots, 3)
	assert.Equal(t, receipts[0], export.Ballots[0].ReceiptHash)
	assert.NotEmpty(t, export.Ballots[0].Salt)

	status = app.do(t, http.MethodPut, base+"/status", organizer, map[string]string{"status": "open"}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "election_closed", errBody.Code)
}

func TestOrganizerRoutesRequireAuthentication(t *testing.T) {
	app := setupTestApp(t)

	var errBody errorBody
	status := app.do(t, http.MethodGet, "/api/elections", "", nil, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errBody.Code)

	status = app.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBallotSessionIsNotAnOrganizerCredential(t *testing.T) {
	app := setupTestApp(t)

	issuer := session.NewJWTIssuer(testSecret, time.Minute)
	sessionToken, err := issuer.Issue(domain.BallotSession{
		Kind:       domain.SessionKindToken,
		ElectionID: uuid.New(),
		TokenID:    uuid.New(),
	})
	require.NoError(t, err)

	status := app.do(t, http.MethodGet, "/api/elections", sessionToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAccessTokenCookie(t *testing.T) {
	app := setupTestApp(t)
	organizer := app.createUserAndToken(t)

	req, err := http.NewRequest(http.MethodGet, app.Server.URL+"/api/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: organizer})

	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user domain.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "Organizer", user.Name)
}

func TestOtherOrganizerIsForbidden(t *testing.T) {
	app := setupTestApp(t)
	owner := app.createUserAndToken(t)
	other := app.createUserAndToken(t)

	var election domain.Election
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/elections", owner, map[string]any{"title": "Private"}, &election))

	var errBody errorBody
	status := app.do(t, http.MethodGet, "/api/elections/"+election.ID.String(), other, nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errBody.Code)

	status = app.do(t, http.MethodGet, "/api/elections/"+election.ID.String()+"/analytics", other, nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)

	status = app.do(t, http.MethodGet, "/api/elections/not-a-uuid", owner, nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_id", errBody.Code)

	status = app.do(t, http.MethodGet, "/api/elections/"+uuid.NewString(), owner, nil, &errBody)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateElectionValidation(t *testing.T) {
	app := setupTestApp(t)
	organizer := app.createUserAndToken(t)

	var errBody errorBody
	status := app.do(t, http.MethodPost, "/api/elections", organizer, map[string]any{"title": ""}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", errBody.Code)

	status = app.do(t, http.MethodPost, "/api/elections", organizer, map[string]any{"title": "x", "mode": "IRV", "seats": 2}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)

	req, err := http.NewRequest(http.MethodPost, app.Server.URL+"/api/elections", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+organizer)
	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Client.Get(app.Server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}
