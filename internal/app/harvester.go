package app

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/adapters/observability"
	"placeharvest/internal/domain"
)

type HarvestState int

const (
	Idle HarvestState = iota
	Scrolling
	AreaExpanded
	PageTurned // "next page" clicked after expansions were spent
	Exhausted  // stalled: no new results and no fallback left
	Done       // per-city cap reached
)

func (s HarvestState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scrolling:
		return "scrolling"
	case AreaExpanded:
		return "area_expanded"
	case PageTurned:
		return "page_turned"
	case Exhausted:
		return "exhausted"
	case Done:
		return "done"
	}
	return "unknown"
}

type HarvestOptions struct {
	MaxCandidates  int // <= 0 means no cap
	ExpandAttempts int // expand-area actions allowed per city
	PageTurns      int // "next page" clicks allowed once expansions are spent
	StallLimit     int // zero-yield steps tolerated once fallbacks are spent
	MaxSteps       int // hard bound on scroll steps
}

func (o HarvestOptions) withDefaults() HarvestOptions {
	if o.ExpandAttempts < 0 {
		o.ExpandAttempts = 0
	}
	if o.PageTurns < 0 {
		o.PageTurns = 0
	}
	if o.StallLimit <= 0 {
		o.StallLimit = 1
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 200
	}
	return o
}

// Harvester walks the result list of one city, yielding new candidates per
// step until the cap is reached or the list stops growing.
type Harvester struct {
	page  domain.Page
	city  string
	opts  HarvestOptions
	state HarvestState

	seen       map[string]struct{}
	count      int
	expansions int
	turns      int
	stalls     int
	steps      int
}

func NewHarvester(page domain.Page, city string, opts HarvestOptions) *Harvester {
	return &Harvester{
		page: page,
		city: city,
		opts: opts.withDefaults(),
		seen: make(map[string]struct{}),
	}
}

func (h *Harvester) State() HarvestState { return h.state }

func (h *Harvester) Finished() bool { return h.state == Exhausted || h.state == Done }

// NextBatch performs one step and returns the candidates it discovered. Page
// failures count as a zero-yield step; only ctx errors are returned.
func (h *Harvester) NextBatch(ctx context.Context) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch h.state {
	case Exhausted, Done:
		return nil, nil
	case Idle:
		h.transition(Scrolling) // first step reads what is already visible
	default:
		if h.steps >= h.opts.MaxSteps {
			h.transition(Exhausted)
			return nil, nil
		}
		h.steps++
		if err := h.page.Scroll(ctx, feedContainer); err != nil {
			log.Debug().Err(err).Str("city", h.city).Msg("scroll failed")
		}
	}

	batch := h.collect(ctx)
	switch {
	case h.capReached():
		h.transition(Done)
	case len(batch) == 0:
		h.stalled(ctx)
	default:
		h.stalls = 0
		if h.state == AreaExpanded || h.state == PageTurned {
			h.transition(Scrolling)
		}
	}
	return batch, ctx.Err()
}

// Run drives the harvester to a terminal state and returns every candidate in
// discovery order.
func (h *Harvester) Run(ctx context.Context) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for !h.Finished() {
		batch, err := h.NextBatch(ctx)
		out = append(out, batch...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (h *Harvester) collect(ctx context.Context) []domain.Candidate {
	links, err := h.page.QueryLinks(ctx, feedPlaceLinks)
	if err == nil && len(links) == 0 {
		links, err = h.page.QueryLinks(ctx, anyPlaceLinks)
	}
	if err != nil {
		log.Debug().Err(err).Str("city", h.city).Msg("result list query failed")
		return nil
	}

	var out []domain.Candidate
	for _, l := range links {
		if h.capReached() {
			break
		}
		c, ok := NormalizeCandidate(l.Href, l.Text)
		if !ok {
			continue
		}
		if _, dup := h.seen[c.ID]; dup {
			continue
		}
		h.seen[c.ID] = struct{}{}
		h.count++
		out = append(out, c)
	}
	if len(out) > 0 {
		observability.Candidates.WithLabelValues(h.city).Add(float64(len(out)))
	}
	return out
}

func (h *Harvester) stalled(ctx context.Context) {
	if h.expansions < h.opts.ExpandAttempts {
		h.expansions++
		h.transition(AreaExpanded)
		h.expandArea(ctx)
		return
	}
	if h.turns < h.opts.PageTurns {
		h.turns++
		if h.nextPage(ctx) {
			h.stalls = 0
			h.transition(PageTurned)
			return
		}
	}
	h.stalls++
	if h.stalls >= h.opts.StallLimit {
		h.transition(Exhausted)
	}
}

// expandArea clicks the first "search this area" button found. A missing
// button still consumes the attempt.
func (h *Harvester) expandArea(ctx context.Context) {
	for _, txt := range searchThisAreaTexts {
		ok, err := h.page.Click(ctx, domain.Target{Text: txt})
		if err != nil {
			log.Debug().Err(err).Str("city", h.city).Msg("expand area click failed")
			return
		}
		if ok {
			return
		}
	}
}

// nextPage clicks the list's "next page" button, by aria-label first and
// then by localized text.
func (h *Harvester) nextPage(ctx context.Context) bool {
	ok, err := h.page.Click(ctx, domain.Target{Selector: nextPageButton})
	if err != nil {
		log.Debug().Err(err).Str("city", h.city).Msg("next page click failed")
		return false
	}
	if ok {
		return true
	}
	for _, txt := range nextPageTexts {
		ok, err := h.page.Click(ctx, domain.Target{Text: txt})
		if err != nil {
			log.Debug().Err(err).Str("city", h.city).Msg("next page click failed")
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

func (h *Harvester) capReached() bool {
	return h.opts.MaxCandidates > 0 && h.count >= h.opts.MaxCandidates
}

func (h *Harvester) transition(to HarvestState) {
	if h.state == to {
		return
	}
	log.Debug().Str("city", h.city).Str("from", h.state.String()).Str("to", to.String()).
		Int("candidates", h.count).Msg("harvester transition")
	h.state = to
	observability.HarvesterStates.WithLabelValues(to.String()).Inc()
}

// NormalizeCandidate reduces a place link to its stable identity: query and
// fragment are dropped, only the /maps/place/ path is kept.
func NormalizeCandidate(raw, name string) (domain.Candidate, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || !strings.Contains(u.Path, "/maps/place/") {
		return domain.Candidate{}, false
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)
	path := strings.TrimRight(u.EscapedPath(), "/")
	return domain.Candidate{
		ID:   host + path,
		URL:  scheme + "://" + host + path,
		Name: strings.TrimSpace(name),
	}, true
}
