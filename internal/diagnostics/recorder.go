package diagnostics

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured event.
type Record struct {
	Level slog.Level
	Name  string
	Attrs map[string]any
}

// Recorder is a slog.Handler that keeps every event in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	attrs   []slog.Attr
	parent  *Recorder
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Logger returns a logger writing into the recorder.
func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

func (r *Recorder) root() *Recorder {
	if r.parent != nil {
		return r.parent.root()
	}
	return r
}

// Enabled implements slog.Handler.
func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.records = append(root.records, Record{Level: rec.Level, Name: rec.Message, Attrs: attrs})
	return nil
}

// WithAttrs implements slog.Handler.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, r.attrs...), attrs...)
	return &Recorder{attrs: merged, parent: r.root()}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (r *Recorder) WithGroup(string) slog.Handler { return r }

// Records returns a copy of the captured events.
func (r *Recorder) Records() []Record {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	out := make([]Record, len(root.records))
	copy(out, root.records)
	return out
}

// Named returns the captured events with the given name.
func (r *Recorder) Named(name string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// SQL returns the command text of every executed command, in order.
func (r *Recorder) SQL() []string {
	var out []string
	for _, rec := range r.Named(EventCommandExecuting) {
		if s, ok := rec.Attrs["sql"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops every captured event.
func (r *Recorder) Reset() {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.records = nil
}
