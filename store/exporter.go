package store

import "context"

// Exporter receives snapshots of the store.
//
// Contract:
//   - Export may be called with an empty slice.
//   - Export must not retain the slice after returning.
type Exporter interface {
	Export(ctx context.Context, entries []EntrySnapshot) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, entries []EntrySnapshot) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, entries []EntrySnapshot) error {
	return f(ctx, entries)
}

var _ Exporter = ExporterFunc(nil)
