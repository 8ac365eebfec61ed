package app

import (
	"sync"

	"placeharvest/internal/domain"
)

// Preview holds the most recent records for the live status endpoint.
type Preview struct {
	mu   sync.Mutex
	max  int
	recs []domain.PlaceRecord
}

func NewPreview(max int) *Preview {
	if max <= 0 {
		max = 40
	}
	return &Preview{max: max}
}

func (p *Preview) Push(rec domain.PlaceRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	if n := len(p.recs) - p.max; n > 0 {
		p.recs = append(p.recs[:0:0], p.recs[n:]...)
	}
}

// Snapshot returns the buffered records, oldest first.
func (p *Preview) Snapshot() []domain.PlaceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PlaceRecord, len(p.recs))
	copy(out, p.recs)
	return out
}
