package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

const exitMismatch = 3

func main() {
	input := flag.String("in", "-", "Audit export JSON file, or - for stdin")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	report, err := replay(*input, os.Stdin)
	if err != nil {
		logger.Error("replay failed", slog.Any("error", err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		os.Exit(1)
	}

	if !report.OK() {
		logger.Error("audit export does not verify",
			slog.String("election_id", report.ElectionID.String()),
			slog.Any("bad_receipts", report.BadReceipts),
			slog.Int("unlisted_receipts", len(report.UnlistedReceipts)),
			slog.Bool("result_matches", report.ResultMatches),
		)
		os.Exit(exitMismatch)
	}
}

func replay(path string, stdin io.Reader) (*services.ReplayReport, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var export domain.AuditExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode audit export: %w", err)
	}

	return services.Replay(&export)
}
