package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// ErrMissingValue is returned when a parameter has no bound value.
var ErrMissingValue = errors.New("no value bound for parameter")

// Resolve produces the parameter values of one execution. Captured values
// come from bindings and filter members from fctx. Collections are sent
// as JSON arrays.
func Resolve(ps []*algebra.Parameter, bindings domain.Bindings, fctx domain.FilterContext) ([]domain.BoundParameter, error) {
	out := make([]domain.BoundParameter, 0, len(ps))
	for _, p := range ps {
		v, err := value(p, bindings, fctx)
		if err != nil {
			return nil, err
		}
		if p.Collection {
			if v, err = CollectionJSON(v); err != nil {
				return nil, fmt.Errorf("parameter @%s: %w", p.Name, err)
			}
		}
		bp := domain.BoundParameter{Name: p.Name, Value: v, Nullable: p.Nullable || v == nil}
		if m := p.Mapping; m != nil {
			bp.StoreType = m.StoreType
			bp.Size = m.Size
			bp.Precision = m.Precision
			bp.Scale = m.Scale
		}
		out = append(out, bp)
	}
	return out, nil
}

func value(p *algebra.Parameter, bindings domain.Bindings, fctx domain.FilterContext) (any, error) {
	src := p.Source
	switch src.Kind {
	case algebra.FilterParameter:
		v, ok := fctx[src.Name]
		if !ok {
			return nil, fmt.Errorf("%w @%s: filter context of %s has no member %s", ErrMissingValue, p.Name, src.Entity, src.Name)
		}
		return v, nil
	case algebra.RawParameter:
		if src.Name == "" {
			return p.Value, nil
		}
	}
	v, ok := bindings[src.Name]
	if !ok {
		return nil, fmt.Errorf("%w @%s: %s is not bound", ErrMissingValue, p.Name, src.Name)
	}
	return v, nil
}

// CollectionJSON serializes a slice as the JSON text of an array. A nil
// value stays nil.
func CollectionJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	items, err := Elements(v)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		switch x := item.(type) {
		case time.Time:
			items[i] = x.Format("2006-01-02T15:04:05.9999999")
		case uuid.UUID:
			items[i] = x.String()
		}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Elements returns the elements of a slice or array value.
func Elements(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return append([]any(nil), items...), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a collection, got %T", v)
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, fmt.Errorf("expected a collection, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// ExpandRaw replaces the {n} placeholders of raw SQL by render(n).
// Doubled braces escape a literal brace.
func ExpandRaw(sql string, render func(i int) (string, error)) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '{' && i+1 < len(sql) && sql[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(sql) && sql[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(sql[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("raw sql: unterminated placeholder at offset %d", i)
			}
			n, err := strconv.Atoi(sql[i+1 : i+end])
			if err != nil {
				return "", fmt.Errorf("raw sql: invalid placeholder %q", sql[i:i+end+1])
			}
			text, err := render(n)
			if err != nil {
				return "", err
			}
			sb.WriteString(text)
			i += end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// Placeholders returns the distinct placeholder indexes of raw SQL in order.
func Placeholders(sql string) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	_, err := ExpandRaw(sql, func(i int) (string, error) {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
		return "", nil
	})
	return out, err
}
