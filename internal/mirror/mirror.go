package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog"
)

// Kind names a mirrored table. Each kind is one JSON document.
type Kind string

// Mirrored tables.
const (
	Departments Kind = "departments"
	Settings    Kind = "settings"
	Reports     Kind = "reports"
	Directives  Kind = "directives"
)

// Mirror pushes local tables to the remote copy and pulls them back.
type Mirror interface {
	// Enabled reports whether pushes go anywhere. Callers skip building
	// snapshots when it is false.
	Enabled() bool
	// Push overwrites the remote document for kind with records.
	Push(ctx context.Context, kind Kind, records interface{}) error
	// Pull decodes the remote document for kind into dst. It reports false
	// when the document does not exist yet.
	Pull(ctx context.Context, kind Kind, dst interface{}) (bool, error)
}

// Store is the remote document API a Snapshot needs; *Client implements it.
type Store interface {
	ReadSnapshot(ctx context.Context, path string) ([]byte, string, error)
	WriteSnapshot(ctx context.Context, path string, data []byte, revision string) error
}

// Snapshot mirrors tables as <prefix>/<kind>.json documents.
type Snapshot struct {
	store  Store
	prefix string
	log    zerolog.Logger
}

// NewSnapshot creates a Mirror writing under prefix (e.g. "data").
func NewSnapshot(store Store, prefix string, log zerolog.Logger) *Snapshot {
	return &Snapshot{store: store, prefix: prefix, log: log}
}

// Path returns the document path for kind.
func (s *Snapshot) Path(kind Kind) string {
	return path.Join(s.prefix, string(kind)+".json")
}

// Enabled always returns true.
func (s *Snapshot) Enabled() bool { return true }

// Push reads the current revision, then overwrites the document. A concurrent
// writer between the two calls makes the write fail; the caller reports it and
// the next push wins.
func (s *Snapshot) Push(ctx context.Context, kind Kind, records interface{}) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", kind, err)
	}

	p := s.Path(kind)
	_, revision, err := s.store.ReadSnapshot(ctx, p)
	if err != nil {
		return err
	}

	if err := s.store.WriteSnapshot(ctx, p, data, revision); err != nil {
		return err
	}

	s.log.Debug().Str("kind", string(kind)).Int("bytes", len(data)).Msg("snapshot pushed")
	return nil
}

// Pull decodes the remote document for kind into dst.
func (s *Snapshot) Pull(ctx context.Context, kind Kind, dst interface{}) (bool, error) {
	data, _, err := s.store.ReadSnapshot(ctx, s.Path(kind))
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s snapshot: %w", kind, err)
	}
	return true, nil
}

// Noop is the Mirror used when syncing is disabled.
type Noop struct{}

// Enabled returns false.
func (Noop) Enabled() bool { return false }

// Push does nothing.
func (Noop) Push(context.Context, Kind, interface{}) error { return nil }

// Pull reports that nothing exists.
func (Noop) Pull(context.Context, Kind, interface{}) (bool, error) { return false, nil }
