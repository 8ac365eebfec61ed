package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/adapters/observability"
	"placeharvest/internal/domain"
)

// Mirror receives every flushed batch, typically the MySQL repository.
type Mirror interface {
	UpsertPlaces(ctx context.Context, runID string, recs []domain.PlaceRecord) error
}

type Options struct {
	RunID      string
	FlushEvery int    // records buffered between flushes
	Mirror     Mirror // optional
}

type syncFile interface {
	io.Writer
	Sync() error
	Close() error
}

// Sink appends records to a CSV file. The header is written only when the
// file is new or empty, so repeated runs extend the same file. The first
// write or sync failure is sticky: later calls return it and nothing is
// written again.
type Sink struct {
	mu      sync.Mutex
	f       syncFile
	w       *csv.Writer
	opts    Options
	pending []domain.PlaceRecord
	written map[string]struct{}
	err     error
}

func Open(path string, opts Options) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrSinkWrite, path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrSinkWrite, path, err)
	}
	s := newSink(f, opts)
	if st.Size() == 0 {
		if err := s.w.Write(domain.Columns); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: header: %v", domain.ErrSinkWrite, err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: header: %v", domain.ErrSinkWrite, err)
		}
	}
	return s, nil
}

func newSink(f syncFile, opts Options) *Sink {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 10
	}
	return &Sink{f: f, w: csv.NewWriter(f), opts: opts, written: make(map[string]struct{})}
}

// Write buffers rec. A candidate already written in this run is rejected
// with domain.ErrDuplicateRecord.
func (s *Sink) Write(ctx context.Context, rec domain.PlaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, dup := s.written[rec.CandidateID]; dup {
		return domain.ErrDuplicateRecord
	}
	s.written[rec.CandidateID] = struct{}{}
	s.pending = append(s.pending, rec)
	if len(s.pending) >= s.opts.FlushEvery {
		return s.flushLocked(ctx)
	}
	return nil
}

func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Sink) flushLocked(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	if len(s.pending) == 0 {
		return nil
	}
	// Rows handed to the writer may reach the file even if a later step
	// fails, so the batch is never retried.
	batch := s.pending
	s.pending = nil
	if err := s.writeBatch(batch); err != nil {
		observability.SinkFlushes.WithLabelValues("error").Inc()
		s.err = err
		return err
	}
	observability.SinkFlushes.WithLabelValues("ok").Inc()

	// The file is the source of truth; a mirror failure is logged, not fatal.
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.UpsertPlaces(ctx, s.opts.RunID, batch); err != nil {
			log.Warn().Err(err).Int("records", len(batch)).Msg("mirror upsert failed")
		}
	}
	return nil
}

func (s *Sink) writeBatch(batch []domain.PlaceRecord) error {
	for _, r := range batch {
		if err := s.w.Write(r.Row()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSinkWrite, err)
		}
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSinkWrite, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", domain.ErrSinkWrite, err)
	}
	return nil
}

// Close flushes what is buffered and closes the file.
func (s *Sink) Close(ctx context.Context) error {
	ferr := s.Flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil && ferr == nil {
		ferr = fmt.Errorf("%w: close: %v", domain.ErrSinkWrite, err)
	}
	return ferr
}
