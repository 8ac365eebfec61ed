package domain

import (
	"strconv"
	"strings"
)

// City is one orchestration target. Center is optional; when nil it is
// resolved at scoping time.
type City struct {
	Name   string
	Center *Coords
	Locale string // UI language hint, e.g. "en"
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coords) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Candidate is a deduplicated reference to one place found in the result list.
type Candidate struct {
	ID   string // host+path of the place URL, no query or fragment
	URL  string // canonical, navigable place URL
	Name string // preview name from the result card, may be empty
}

type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	X         Platform = "x"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
	Line      Platform = "line"
)

// Platforms lists social platforms in output column order.
var Platforms = []Platform{Facebook, Instagram, X, TikTok, YouTube, Line}

// PlaceRecord is the output unit. Nil pointers mean the field was not found.
type PlaceRecord struct {
	CandidateID string
	City        string
	Name        *string
	Address     *string
	Phone       *string
	Website     *string
	Rating      *float64
	ReviewCount *int
	Coords      *Coords
	MapsURL     string
	Socials     map[Platform]string
}

// Columns is the fixed output column order.
var Columns = []string{
	"city", "name", "address", "phone", "website", "rating", "review_count",
	"latitude", "longitude", "maps_url",
	"facebook", "instagram", "x", "tiktok", "youtube", "line",
}

// Row renders the record in Columns order; absent fields are empty strings.
func (r PlaceRecord) Row() []string {
	row := []string{
		r.City, deref(r.Name), deref(r.Address), deref(r.Phone), deref(r.Website),
		"", "", "", "", r.MapsURL,
	}
	if r.Rating != nil {
		row[5] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	if r.ReviewCount != nil {
		row[6] = strconv.Itoa(*r.ReviewCount)
	}
	if r.Coords != nil {
		row[7] = strconv.FormatFloat(r.Coords.Lat, 'f', -1, 64)
		row[8] = strconv.FormatFloat(r.Coords.Lon, 'f', -1, 64)
	}
	for _, p := range Platforms {
		row = append(row, r.Socials[p])
	}
	return row
}

// Present reports, per column, whether the record carries a value.
func (r PlaceRecord) Present() map[string]bool {
	out := map[string]bool{
		"city":         r.City != "",
		"name":         r.Name != nil,
		"address":      r.Address != nil,
		"phone":        r.Phone != nil,
		"website":      r.Website != nil,
		"rating":       r.Rating != nil,
		"review_count": r.ReviewCount != nil,
		"latitude":     r.Coords != nil,
		"longitude":    r.Coords != nil,
		"maps_url":     r.MapsURL != "",
	}
	for _, p := range Platforms {
		out[string(p)] = r.Socials[p] != ""
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// View converts the record to its API shape.
func (r PlaceRecord) View(runID string) PlaceView {
	return PlaceView{
		RunID:       runID,
		City:        r.City,
		Name:        r.Name,
		Address:     r.Address,
		Phone:       r.Phone,
		Website:     r.Website,
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
		Coords:      r.Coords,
		MapsURL:     r.MapsURL,
		Socials:     r.Socials,
	}
}

// ListingKey identifies the listing behind a record by its lowercased name
// and coordinates, so two place URLs for one listing collapse. ok is false
// when either part is missing.
func (r PlaceRecord) ListingKey() (string, bool) {
	if r.Name == nil || r.Coords == nil {
		return "", false
	}
	name := strings.ToLower(strings.TrimSpace(*r.Name))
	if name == "" {
		return "", false
	}
	return name + "|" + r.Coords.String(), true
}
