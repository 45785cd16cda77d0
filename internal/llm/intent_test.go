package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestExtractJSONSpan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"object in prose", `Here is the result: {"a": 1} hope it helps`, `{"a": 1}`, true},
		{"nested objects", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"tpl": "{schema}.{name}"}`, `{"tpl": "{schema}.{name}"}`, true},
		{"escaped quote inside string", `{"a": "say \"hi\" {now}"}`, `{"a": "say \"hi\" {now}"}`, true},
		{"first of two objects", `{"a": 1} {"b": 2}`, `{"a": 1}`, true},
		{"no object", `no json here`, "", false},
		{"unbalanced", `{"a": 1`, "", false},
		{"empty input", ``, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONSpan(tt.input)
			if ok != tt.ok {
				t.Fatalf("extractJSONSpan(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("extractJSONSpan(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// fakeGenerator is a canned-response generator for gateway tests.
type fakeGenerator struct {
	response string
	usage    Usage
	cost     float64
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, Usage, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.usage, f.err
}

func (f *fakeGenerator) Cost(u Usage) float64 { return f.cost }

func TestClassifyIntent(t *testing.T) {
	ctx := context.Background()
	query := "find customer tables"

	t.Run("nil model falls back to default", func(t *testing.T) {
		g := NewGateway(nil, nil)
		got := g.ClassifyIntent(ctx, query)
		if !reflect.DeepEqual(got, DefaultIntent(query)) {
			t.Errorf("got %+v, want default intent", got)
		}
	})

	t.Run("provider error falls back to default", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{err: errors.New("connection refused")}, nil)
		got := g.ClassifyIntent(ctx, query)
		if !reflect.DeepEqual(got, DefaultIntent(query)) {
			t.Errorf("got %+v, want default intent", got)
		}
	})

	t.Run("no JSON in reply falls back to default", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: "I could not determine the intent."}, nil)
		got := g.ClassifyIntent(ctx, query)
		if !reflect.DeepEqual(got, DefaultIntent(query)) {
			t.Errorf("got %+v, want default intent", got)
		}
	})

	t.Run("malformed JSON span falls back to default", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: `{"object_type": table}`}, nil)
		got := g.ClassifyIntent(ctx, query)
		if !reflect.DeepEqual(got, DefaultIntent(query)) {
			t.Errorf("got %+v, want default intent", got)
		}
	})

	t.Run("valid reply is parsed", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: `Sure! {
			"object_type": "table",
			"detail_level": "full_details",
			"include_fields": ["schema", "name", "columns"],
			"format_template": "{schema}.{name}",
			"search_query": "customer"
		}`}, nil)
		got := g.ClassifyIntent(ctx, query)
		if got.ObjectType != "table" || got.DetailLevel != "full_details" || got.SearchQuery != "customer" {
			t.Errorf("unexpected intent: %+v", got)
		}
	})

	t.Run("empty search query filled with original", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: `{"object_type": "view", "search_query": ""}`}, nil)
		got := g.ClassifyIntent(ctx, query)
		if got.SearchQuery != query {
			t.Errorf("SearchQuery = %q, want original query", got.SearchQuery)
		}
	})
}

func TestDefaultIntent(t *testing.T) {
	got := DefaultIntent("audit log")
	if got.ObjectType != "any" {
		t.Errorf("ObjectType = %q, want any", got.ObjectType)
	}
	if got.DetailLevel != "basic_info" {
		t.Errorf("DetailLevel = %q, want basic_info", got.DetailLevel)
	}
	if got.FormatTemplate != "{schema}.{name} ({type})" {
		t.Errorf("FormatTemplate = %q", got.FormatTemplate)
	}
	if got.SearchQuery != "audit log" {
		t.Errorf("SearchQuery = %q, want original query", got.SearchQuery)
	}
}
