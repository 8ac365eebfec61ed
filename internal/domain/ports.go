package domain

import "context"

// Link is an anchor found on the page. Text holds the aria-label when present,
// otherwise the visible text.
type Link struct {
	Href string
	Text string
}

// Target identifies something to click: a CSS selector, or a button whose
// visible text / aria-label contains Text.
type Target struct {
	Selector string
	Text     string
}

// Page is the browser capability the pipeline drives. Every call may block
// until its own timeout and then fails with ErrPageTimeout.
type Page interface {
	Navigate(ctx context.Context, url string) error
	TypeAndSubmit(ctx context.Context, query string) error
	Scroll(ctx context.Context, container string) error
	Click(ctx context.Context, t Target) (bool, error)
	WaitFor(ctx context.Context, selector string) error
	URL(ctx context.Context) (string, error)
	QueryText(ctx context.Context, selector string) ([]string, error)
	QueryLinks(ctx context.Context, selector string) ([]Link, error)
	QueryAttr(ctx context.Context, selector, attr string) ([]string, error)
}

// Geolocator is implemented by pages that can override the device position
// reported to the site.
type Geolocator interface {
	SetGeolocation(ctx context.Context, c Coords) error
}

// RecordSink persists emitted records. Write may buffer; Flush makes the
// buffered records durable.
type RecordSink interface {
	Write(ctx context.Context, rec PlaceRecord) error
	Flush(ctx context.Context) error
}

type PreviewSink interface {
	Push(rec PlaceRecord)
}

// PlaceRepository mirrors a run into a database.
type PlaceRepository interface {
	// Write paths
	UpsertPlaces(ctx context.Context, runID string, recs []PlaceRecord) error
	LogSkip(ctx context.Context, runID, city, candidateID, reason string) error
	SaveHealth(ctx context.Context, runID string, h HealthSummary) error

	// Read paths
	ListPlaces(ctx context.Context, q PlacesQuery) (PlacesPage, error)
	LatestHealth(ctx context.Context, city string) (HealthSummary, error)
}

// Geocoder resolves a free-form city name to a center point.
type Geocoder interface {
	Geocode(ctx context.Context, city string) (Coords, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models & queries
type PlacesQuery struct {
	City  string
	Limit int
}

type PlaceView struct {
	RunID       string              `json:"run_id"`
	City        string              `json:"city"`
	Name        *string             `json:"name"`
	Address     *string             `json:"address"`
	Phone       *string             `json:"phone"`
	Website     *string             `json:"website"`
	Rating      *float64            `json:"rating"`
	ReviewCount *int                `json:"review_count"`
	Coords      *Coords             `json:"coords"`
	MapsURL     string              `json:"maps_url"`
	Socials     map[Platform]string `json:"socials,omitempty"`
}

type PlacesPage struct {
	Items []PlaceView `json:"items"`
}
