package commands

import (
	"fmt"
	"math"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// QueryFile is a YAML file of named queries:
//
//	queries:
//	  - name: london
//	    query: Customers.Where(c => c.City == @city)
//	    bindings:
//	      city: London
//	filter:
//	  Tenant: 1
type QueryFile struct {
	Queries []Query        `json:"queries"`
	Filter  map[string]any `json:"filter,omitempty"`
}

// Query is one entry of a query file.
type Query struct {
	Name     string         `json:"name"`
	Query    string         `json:"query"`
	Bindings map[string]any `json:"bindings,omitempty"`
}

// ParseQueryFile decodes a query file.
func ParseQueryFile(data []byte) (*QueryFile, error) {
	var f QueryFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("invalid query file: %w", err)
	}
	for i, q := range f.Queries {
		if q.Query == "" {
			return nil, fmt.Errorf("invalid query file: query %d has no text", i+1)
		}
		if q.Name == "" {
			f.Queries[i].Name = fmt.Sprintf("query %d", i+1)
		}
	}
	return &f, nil
}

// LoadQueryFile reads and decodes a query file.
func LoadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return ParseQueryFile(data)
}

// BindingsOf converts decoded YAML values to bindings. Whole numbers
// become int64.
func (q Query) BindingsOf() domain.Bindings {
	if len(q.Bindings) == 0 {
		return nil
	}
	out := make(domain.Bindings, len(q.Bindings))
	for k, v := range q.Bindings {
		out[k] = normalize(v)
	}
	return out
}

// FilterContext returns the filter values of the file.
func (f *QueryFile) FilterContext() domain.FilterContext {
	if len(f.Filter) == 0 {
		return nil
	}
	out := make(domain.FilterContext, len(f.Filter))
	for k, v := range f.Filter {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// selectQueries returns the queries named by the --query, --param and
// --file flags.
func selectQueries(text string, params map[string]string, file string) (*QueryFile, error) {
	switch {
	case text != "" && file != "":
		return nil, fmt.Errorf("--query and --file are exclusive")
	case text != "":
		q := Query{Name: "query", Query: text}
		if len(params) > 0 {
			q.Bindings = make(map[string]any, len(params))
			for k, v := range params {
				q.Bindings[k] = v
			}
		}
		return &QueryFile{Queries: []Query{q}}, nil
	case file != "":
		return LoadQueryFile(file)
	}
	return nil, fmt.Errorf("one of --query or --file is required")
}
