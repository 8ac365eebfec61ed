package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"placeharvest/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Repo mirrors harvest runs into MySQL.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// UpsertPlaces writes one flushed batch in a single statement.
func (r *Repo) UpsertPlaces(ctx context.Context, runID string, recs []domain.PlaceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	values := make([]string, 0, len(recs))
	args := make([]any, 0, len(recs)*13) // 13 params per row
	for _, rec := range recs {
		var lat, lon any
		if rec.Coords != nil {
			lat, lon = rec.Coords.Lat, rec.Coords.Lon
		}
		var socials []byte
		if len(rec.Socials) > 0 {
			socials, _ = json.Marshal(rec.Socials)
		}
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			runID,
			rec.CandidateID,
			rec.City,
			valStr(rec.Name),
			valStr(rec.Address),
			valStr(rec.Phone),
			valStr(rec.Website),
			valF64(rec.Rating),
			valInt(rec.ReviewCount),
			lat, lon,
			rec.MapsURL,
			valJSON(socials),
		)
	}
	sqlStr := insertPlacesPrefix + strings.Join(values, ",") + insertPlacesOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) LogSkip(ctx context.Context, runID, city, candidateID, reason string) error {
	_, err := r.db.ExecContext(ctx, insertSkipSQL, runID, candidateID, city, reason)
	return err
}

func (r *Repo) SaveHealth(ctx context.Context, runID string, h domain.HealthSummary) error {
	present, err := json.Marshal(h.Present)
	if err != nil {
		return err
	}
	var herr any
	if h.Error != "" {
		herr = h.Error
	}
	_, err = r.db.ExecContext(ctx, upsertHealthSQL,
		runID, h.City, h.Total, h.Skipped, h.Candidates, string(present), herr, h.FinishedAt.UTC())
	return err
}

func (r *Repo) ListPlaces(ctx context.Context, q domain.PlacesQuery) (domain.PlacesPage, error) {
	rows, err := r.db.QueryContext(ctx, listPlacesSQL, q.City, q.City, q.Limit)
	if err != nil {
		return domain.PlacesPage{}, err
	}
	defer rows.Close()

	out := make([]domain.PlaceView, 0, q.Limit)
	for rows.Next() {
		var v domain.PlaceView
		var name, addr, phone, site sql.NullString
		var rating, lat, lon sql.NullFloat64
		var reviews sql.NullInt64
		var socials []byte
		if err := rows.Scan(
			&v.RunID, &v.City,
			&name, &addr, &phone, &site,
			&rating, &reviews,
			&lat, &lon,
			&v.MapsURL, &socials,
		); err != nil {
			return domain.PlacesPage{}, err
		}
		v.Name, v.Address, v.Phone, v.Website = nullStr(name), nullStr(addr), nullStr(phone), nullStr(site)
		if rating.Valid {
			f := rating.Float64
			v.Rating = &f
		}
		if reviews.Valid {
			n := int(reviews.Int64)
			v.ReviewCount = &n
		}
		if lat.Valid && lon.Valid {
			v.Coords = &domain.Coords{Lat: lat.Float64, Lon: lon.Float64}
		}
		if len(socials) > 0 {
			_ = json.Unmarshal(socials, &v.Socials)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return domain.PlacesPage{}, err
	}
	return domain.PlacesPage{Items: out}, nil
}

func (r *Repo) LatestHealth(ctx context.Context, city string) (domain.HealthSummary, error) {
	var h domain.HealthSummary
	var present []byte
	var herr sql.NullString
	err := r.db.QueryRowContext(ctx, latestHealthSQL, city).Scan(
		&h.City, &h.Total, &h.Skipped, &h.Candidates, &present, &herr, &h.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HealthSummary{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.HealthSummary{}, err
	}
	h.Present = map[string]int{}
	_ = json.Unmarshal(present, &h.Present)
	h.Error = herr.String
	h.Finalized = true
	return h, nil
}
