package google

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func TestVerify(t *testing.T) {
	v := &GoogleVerifier{validate: func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "good" || audience != "client" {
			return nil, errors.New("invalid")
		}
		return &idtoken.Payload{Claims: map[string]any{
			"email":          "org@example.com",
			"email_verified": true,
			"name":           "Org",
		}}, nil
	}}

	payload, err := v.Verify(context.Background(), "good", "client")
	require.NoError(t, err)
	assert.Equal(t, "org@example.com", payload.Email)
	assert.Equal(t, "Org", payload.Name)

	_, err = v.Verify(context.Background(), "bad", "client")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "good", "")
	assert.Error(t, err)
}

func TestPayloadFromClaims(t *testing.T) {
	payload, err := payloadFromClaims(map[string]any{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", payload.Name)

	_, err = payloadFromClaims(map[string]any{"email": "a@example.com", "email_verified": false})
	assert.Error(t, err)

	_, err = payloadFromClaims(map[string]any{"name": "No Email"})
	assert.Error(t, err)
}
