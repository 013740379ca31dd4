package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
)

// ReplayReport is the outcome of recounting an audit export offline.
type ReplayReport struct {
	ElectionID uuid.UUID              `json:"election_id"`
	Ballots    int                    `json:"ballots"`
	Order      []counting.CandidateID `json:"tie_break_order"`
	// BadReceipts lists indexes of ballots whose receipt does not match
	// their (salt, ranking).
	BadReceipts []int `json:"bad_receipts,omitempty"`
	// UnlistedReceipts are ballot receipts missing from the published list,
	// or published receipts with no ballot.
	UnlistedReceipts []string               `json:"unlisted_receipts,omitempty"`
	Result           *domain.ElectionResult `json:"result"`
	ResultMatches    bool                   `json:"result_matches"`
}

func (r *ReplayReport) OK() bool {
	return len(r.BadReceipts) == 0 && len(r.UnlistedReceipts) == 0 && r.ResultMatches
}

// Replay independently re-derives every receipt, the tie-break order and the
// tally of an audit export, and compares them with what the export claims.
func Replay(export *domain.AuditExport) (*ReplayReport, error) {
	if export.OrderVersion != counting.SeededOrderVersion {
		return nil, fmt.Errorf("%w: unsupported order version %q", domain.ErrInvalidInput, export.OrderVersion)
	}

	election := export.Election
	election.TieBreakSeed = export.TieBreakSeed

	report := &ReplayReport{
		ElectionID: election.ID,
		Ballots:    len(export.Ballots),
		Order:      counting.SeededOrder(domain.CandidateIDs(export.Candidates), export.TieBreakSeed),
	}

	listed := make(map[string]int, len(export.Receipts))
	for _, r := range export.Receipts {
		listed[r]++
	}

	ballots := make([]counting.Ballot, len(export.Ballots))
	for i, b := range export.Ballots {
		salt, err := base64.StdEncoding.DecodeString(b.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: ballot %d salt: %v", domain.ErrInvalidInput, i, err)
		}
		ok, err := counting.VerifyReceipt(b.Ranking, salt, b.ReceiptHash)
		if err != nil {
			return nil, fmt.Errorf("failed to verify ballot %d: %w", i, err)
		}
		if !ok {
			report.BadReceipts = append(report.BadReceipts, i)
		}

		if listed[b.ReceiptHash] > 0 {
			listed[b.ReceiptHash]--
		} else {
			report.UnlistedReceipts = append(report.UnlistedReceipts, b.ReceiptHash)
		}
		ballots[i] = b.Ranking
	}
	for _, r := range export.Receipts {
		if listed[r] > 0 {
			report.UnlistedReceipts = append(report.UnlistedReceipts, r)
			listed[r]--
		}
	}

	report.Result = ComputeResult(&election, export.Candidates, ballots)

	matches, err := sameCount(report.Result, export.Result)
	if err != nil {
		return nil, err
	}
	report.ResultMatches = matches

	return report, nil
}

// sameCount compares the counted part of two results, ignoring when they
// were calculated.
func sameCount(got, want *domain.ElectionResult) (bool, error) {
	if want == nil {
		return false, nil
	}
	if got.Mode != want.Mode || got.TotalBallots != want.TotalBallots {
		return false, nil
	}
	a, err := json.Marshal([]any{got.IRV, got.STV})
	if err != nil {
		return false, err
	}
	b, err := json.Marshal([]any{want.IRV, want.STV})
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
