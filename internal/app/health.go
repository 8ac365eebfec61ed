package app

import (
	"sync"
	"time"

	"placeharvest/internal/domain"
)

// HealthAggregator keeps per-city counters for the current run. It is read
// concurrently by the status server.
type HealthAggregator struct {
	mu     sync.Mutex
	cities map[string]*domain.HealthSummary
	order  []string
	now    func() time.Time
}

func NewHealthAggregator() *HealthAggregator {
	return &HealthAggregator{cities: make(map[string]*domain.HealthSummary), now: time.Now}
}

func (a *HealthAggregator) Begin(city string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.get(city)
}

// Observe counts rec and each populated field. Records arriving after the
// city was finalized are ignored.
func (a *HealthAggregator) Observe(rec domain.PlaceRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.get(rec.City)
	if s.Finalized {
		return
	}
	s.Total++
	for col, ok := range rec.Present() {
		if ok {
			s.Present[col]++
		}
	}
}

func (a *HealthAggregator) Skip(city string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.get(city); !s.Finalized {
		s.Skipped++
	}
}

func (a *HealthAggregator) SetCandidates(city string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.get(city); !s.Finalized {
		s.Candidates = n
	}
}

func (a *HealthAggregator) Fail(city string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.get(city); !s.Finalized && err != nil {
		s.Error = err.Error()
	}
}

// Finalize freezes the city's summary and returns a copy of it.
func (a *HealthAggregator) Finalize(city string) domain.HealthSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.get(city)
	if !s.Finalized {
		s.Finalized = true
		s.FinishedAt = a.now().UTC()
	}
	return clone(*s)
}

// Summaries returns copies in the order cities were first seen.
func (a *HealthAggregator) Summaries() []domain.HealthSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.HealthSummary, 0, len(a.order))
	for _, c := range a.order {
		out = append(out, clone(*a.cities[c]))
	}
	return out
}

func (a *HealthAggregator) get(city string) *domain.HealthSummary {
	s, ok := a.cities[city]
	if !ok {
		s = &domain.HealthSummary{City: city, Present: make(map[string]int)}
		a.cities[city] = s
		a.order = append(a.order, city)
	}
	return s
}

func clone(s domain.HealthSummary) domain.HealthSummary {
	p := make(map[string]int, len(s.Present))
	for k, v := range s.Present {
		p[k] = v
	}
	s.Present = p
	return s
}
