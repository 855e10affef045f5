package jsonmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/diagnostics"
)

// Reader decodes stored JSON documents into owned values. Unknown keys are
// ignored, missing keys read as nil and null collection elements are
// skipped. A Reader lives for one query execution; it warns once per enum
// type about enum members stored by name.
type Reader struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	warned map[string]bool
}

// NewReader creates a reader emitting diagnostics on logger.
func NewReader(ctx context.Context, logger *slog.Logger) *Reader {
	return &Reader{ctx: ctx, logger: logger, warned: make(map[string]bool)}
}

// Warned returns the enum types a legacy string warning was emitted for.
func (r *Reader) Warned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.warned))
	for name := range r.warned {
		out = append(out, name)
	}
	return out
}

// Decode parses raw JSON text. Nil, empty text and JSON null decode to nil.
func Decode(raw any) (any, error) {
	var data []byte
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(x)
	case []byte:
		data = x
	case map[string]any, []any:
		return x, nil
	default:
		return nil, fmt.Errorf("json: cannot decode %T", raw)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return v, nil
}

// Owned reads an owned reference from raw JSON text or a decoded object.
// An absent or non-object document reads as nil.
func (r *Reader) Owned(raw any, t *model.OwnedType) (map[string]any, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return r.object(v, t)
}

// OwnedCollection reads an owned collection. Null elements are skipped.
func (r *Reader) OwnedCollection(raw any, t *model.OwnedType) ([]map[string]any, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return r.array(v, t)
}

// Primitives reads a primitive collection column into element values.
func (r *Reader) Primitives(raw any, p *model.Property) ([]any, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		val, err := r.Value(item, p)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (r *Reader) object(v any, t *model.OwnedType) (map[string]any, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(t.Properties)+len(t.Owned))
	for _, p := range t.Properties {
		val, err := r.Value(doc[p.Column], p)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, p.Name, err)
		}
		out[p.Name] = val
	}
	for _, n := range t.Owned {
		if n.Collection {
			items, err := r.array(doc[n.JSONKey()], n.Type)
			if err != nil {
				return nil, err
			}
			out[n.Name] = items
			continue
		}
		child, err := r.object(doc[n.JSONKey()], n.Type)
		if err != nil {
			return nil, err
		}
		if child == nil {
			out[n.Name] = nil
			continue
		}
		out[n.Name] = child
	}
	return out, nil
}

func (r *Reader) array(v any, t *model.OwnedType) ([]map[string]any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, err := r.object(item, t)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Value converts one decoded JSON value to the canonical value of p.
// Enums stored as numbers map by value; enums stored as member names map
// by name and emit a warning.
func (r *Reader) Value(v any, p *model.Property) (any, error) {
	if v == nil {
		return nil, nil
	}
	if p.Kind == model.KindEnum && p.Enum != nil {
		if s, ok := v.(string); ok {
			return r.enumByName(s, p.Enum)
		}
	}
	return model.Coerce(p.Kind, v)
}

func (r *Reader) enumByName(s string, e *model.EnumType) (any, error) {
	m, found := e.ByName(s)
	if !found {
		return nil, &domain.ProviderError{
			Code:    domain.ErrCodeConversion,
			Message: fmt.Sprintf("conversion failed when converting the nvarchar value '%s' to data type int", s),
			Cause:   fmt.Errorf("enum %s has no member named %q", e.Name, s),
		}
	}
	r.mu.Lock()
	first := !r.warned[e.Name]
	r.warned[e.Name] = true
	r.mu.Unlock()
	if first {
		diagnostics.Event(r.ctx, r.logger, slog.LevelWarn, diagnostics.EventJSONEnumLegacy,
			"enum", e.Name, "value", s)
	}
	return m.Value, nil
}
