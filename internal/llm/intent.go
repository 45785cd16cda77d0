package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Intent is the structured interpretation of a free-text search query.
type Intent struct {
	ObjectType     string   `json:"object_type"`
	DetailLevel    string   `json:"detail_level"`
	IncludeFields  []string `json:"include_fields"`
	FormatTemplate string   `json:"format_template"`
	SearchQuery    string   `json:"search_query"`
}

// DefaultIntent returns the fallback intent used whenever classification
// fails: search everything at basic detail with the original query.
func DefaultIntent(query string) Intent {
	return Intent{
		ObjectType:     "any",
		DetailLevel:    "basic_info",
		IncludeFields:  []string{"schema", "name", "type"},
		FormatTemplate: "{schema}.{name} ({type})",
		SearchQuery:    query,
	}
}

const intentPrompt = `Analyze this database search query: %q

Determine:
1. What type of database objects is the user interested in? (tables, views, procedures, functions, or any)
2. What level of detail does the user want? (names_only, basic_info, or full_details)
3. What specific information should be included in the response?
4. How should the results be formatted?

Return your analysis as a JSON object with these fields:
- object_type: "table", "view", "procedure", "function", or "any"
- detail_level: "names_only", "basic_info", or "full_details"
- include_fields: array of specific fields to include
- format_template: string showing how each result should be formatted
- search_query: the actual search query to use (simplified if needed)
`

// ClassifyIntent interprets a search query by prompting the provider and
// parsing the first balanced JSON object from its reply. It is total: on
// any provider or parse failure it returns DefaultIntent(query).
func (g *Gateway) ClassifyIntent(ctx context.Context, query string) Intent {
	if g.model == nil {
		return DefaultIntent(query)
	}

	response, _, err := g.model.Generate(ctx, fmt.Sprintf(intentPrompt, query))
	if err != nil {
		slog.Warn("intent classification failed", "error", err)
		return DefaultIntent(query)
	}

	span, ok := extractJSONSpan(response)
	if !ok {
		slog.Warn("no JSON object in intent response")
		return DefaultIntent(query)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(span), &intent); err != nil {
		slog.Warn("failed to parse intent JSON", "error", err)
		return DefaultIntent(query)
	}
	if intent.SearchQuery == "" {
		intent.SearchQuery = query
	}
	return intent
}

// extractJSONSpan returns the first balanced {...} span in s, honoring
// string literals and escapes so braces inside values don't end the span.
func extractJSONSpan(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch {
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			if start != -1 {
				inString = !inString
			}
		case inString:
			// skip everything inside strings
		case ch == '{':
			if start == -1 {
				start = i
			}
			depth++
		case ch == '}':
			if start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
