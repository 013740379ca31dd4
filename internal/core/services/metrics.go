package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type noopMetrics struct{}

func (noopMetrics) BallotAccepted(uuid.UUID) {}
func (noopMetrics) BallotRejected(uuid.UUID, string) {}
func (noopMetrics) TallyComputed(domain.ElectionMode, time.Duration) {}
func (noopMetrics) ReceiptMismatches(uuid.UUID, int) {}
func (noopMetrics) ResultDrift(uuid.UUID, bool) {}

func resolveMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
