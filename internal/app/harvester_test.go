package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placeharvest/internal/domain"
)

func ids(cs []domain.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestHarvester_CapStopsWithoutScrolling(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{
		link(mapsPlace+"A?utm_source=x", "A"),
		link(mapsPlace+"B", "B"),
		link(mapsPlace+"A?entry=ttu", "A again"),
		link(mapsPlace+"C", "C"),
	}}

	h := NewHarvester(p, "Springfield", HarvestOptions{MaxCandidates: 2, ExpandAttempts: 1})
	batch, err := h.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"www.google.com/maps/place/A", "www.google.com/maps/place/B"}, ids(batch))
	assert.Equal(t, Done, h.State())

	more, err := h.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, more)
	assert.Zero(t, p.scrolls)
	assert.Empty(t, p.clicks)
}

func TestHarvester_DedupAcrossStepsThenExhausts(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{
		{link(mapsPlace+"A", ""), link(mapsPlace+"B", "")},
		{link(mapsPlace+"B?hl=en", ""), link(mapsPlace+"C", "")},
	}

	h := NewHarvester(p, "X", HarvestOptions{ExpandAttempts: 1, StallLimit: 1})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"www.google.com/maps/place/A",
		"www.google.com/maps/place/B",
		"www.google.com/maps/place/C",
	}, ids(got))
	assert.Equal(t, Exhausted, h.State())
	// one growing step, one empty step that spends the expansion, one final empty step
	assert.Equal(t, 3, p.scrolls)
}

func TestHarvester_ExpandAreaOnceRevealsMore(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", "")}}
	p.areaFeed = []domain.Link{link(mapsPlace+"D", "")}
	p.clickable["Search this area"] = true

	h := NewHarvester(p, "X", HarvestOptions{ExpandAttempts: 1, StallLimit: 1})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"www.google.com/maps/place/A", "www.google.com/maps/place/D"}, ids(got))
	assert.Equal(t, []string{"Search this area"}, p.clicks)
	assert.Equal(t, Exhausted, h.State())
}

func TestHarvester_NextPageAfterExpansionSpent(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", "")}}
	p.nextFeed = []domain.Link{link(mapsPlace+"B", ""), link(mapsPlace+"A?hl=en", "")}
	p.clickable[nextPageButton] = true

	h := NewHarvester(p, "X", HarvestOptions{ExpandAttempts: 1, PageTurns: 1, StallLimit: 1})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"www.google.com/maps/place/A", "www.google.com/maps/place/B"}, ids(got))
	assert.Equal(t, []string{nextPageButton}, p.clicks)
	assert.Equal(t, Exhausted, h.State())
	assert.Equal(t, 4, p.scrolls)
}

func TestHarvester_NoNextButtonExhaustsAfterExpansion(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", "")}}

	h := NewHarvester(p, "X", HarvestOptions{ExpandAttempts: 1, PageTurns: 3, StallLimit: 1})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, Exhausted, h.State())
	assert.Equal(t, 2, p.scrolls)
	assert.Empty(t, p.clicks)
}

func TestHarvester_RepeatRunsStayUnderCap(t *testing.T) {
	feed := [][]domain.Link{
		{link(mapsPlace+"A", ""), link(mapsPlace+"B", "")},
		{link(mapsPlace+"B?entry=ttu", ""), link(mapsPlace+"C", ""), link(mapsPlace+"D", "")},
		{link(mapsPlace+"E", ""), link(mapsPlace+"A?utm_source=x", "")},
	}
	for _, limit := range []int{1, 2, 3, 5, 8} {
		p := newFakePage()
		p.feed = feed
		opts := HarvestOptions{MaxCandidates: limit, ExpandAttempts: 1, StallLimit: 1}

		first, err := NewHarvester(p, "X", opts).Run(context.Background())
		require.NoError(t, err)
		second, err := NewHarvester(p, "X", opts).Run(context.Background())
		require.NoError(t, err)

		assert.LessOrEqual(t, len(first), limit)
		assert.LessOrEqual(t, len(second), limit)
		assert.Len(t, first, min(limit, 5))
		assert.Equal(t, ids(first), ids(second), "cap %d", limit)
	}
}

func TestHarvester_ScrollErrorCountsAsEmptyStep(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", "")}, {link(mapsPlace+"B", "")}}
	p.scrollErr = domain.ErrPageTimeout

	h := NewHarvester(p, "X", HarvestOptions{ExpandAttempts: 0, StallLimit: 2})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"www.google.com/maps/place/A"}, ids(got))
	assert.Equal(t, 2, p.scrolls)
}

func TestHarvester_MaxStepsBound(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", "")}, {link(mapsPlace+"B", "")}, {link(mapsPlace+"C", "")}}

	h := NewHarvester(p, "X", HarvestOptions{MaxSteps: 1, StallLimit: 5})
	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, Exhausted, h.State())
}

func TestHarvester_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHarvester(newFakePage(), "X", HarvestOptions{})
	_, err := h.NextBatch(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNormalizeCandidate(t *testing.T) {
	cases := []struct {
		in     string
		wantID string
		ok     bool
	}{
		{"https://www.google.com/maps/place/Cafe+One/data=!4m7?authuser=0&hl=en#x", "www.google.com/maps/place/Cafe+One/data=!4m7", true},
		{"https://WWW.Google.com/maps/place/Cafe/", "www.google.com/maps/place/Cafe", true},
		{"https://www.google.com/maps/search/cafe", "", false},
		{"/maps/place/relative", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeCandidate(c.in, " name ")
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.Equal(t, c.wantID, got.ID, c.in)
			assert.Equal(t, "https://"+c.wantID, got.URL, c.in)
			assert.Equal(t, "name", got.Name)
		}
	}
}
