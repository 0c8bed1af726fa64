package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// maxSearchResults bounds search_tools output so the result itself stays
// cheap enough to justify the indirection (§4.E item 2).
const maxSearchResults = 8

// searchResult is one entry returned by search_tools.
type searchResult struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

type searchParams struct {
	Query string `json:"query"`
}

// NewSearchTool builds the lazy search_tools meta-tool bound to reg. An
// agent whose full allowed tool set would blow its context budget is given
// only this one tool plus its core set; it calls search_tools to discover
// the rest by name instead of holding every schema in context up front.
func NewSearchTool(reg *Registry) Tool {
	return Tool{
		Name:        "search_tools",
		Description: "Search the tool catalog by keyword and return up to 8 matching tools with their descriptions.",
		Category:    CategoryToolSearch,
		Schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var p searchParams
			if err := json.Unmarshal(params, &p); err != nil {
				return "", err
			}
			results := searchTools(reg.All(), p.Query)
			out, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// searchTools ranks the catalog against query by substring match first,
// then by word-overlap similarity, and returns at most maxSearchResults.
func searchTools(catalog []Tool, query string) []searchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	type scored struct {
		tool  Tool
		score float64
	}
	var scoredTools []scored
	for _, t := range catalog {
		if t.Category == CategoryToolSearch {
			continue
		}
		hay := strings.ToLower(t.Name + " " + t.Description)
		score := 0.0
		if q == "" {
			score = 0
		} else if strings.Contains(hay, q) {
			score = 1.0
		} else {
			score = similarity(hay, q)
		}
		if score > 0 {
			scoredTools = append(scoredTools, scored{t, score})
		}
	}

	sort.SliceStable(scoredTools, func(i, j int) bool {
		return scoredTools[i].score > scoredTools[j].score
	})

	if len(scoredTools) > maxSearchResults {
		scoredTools = scoredTools[:maxSearchResults]
	}

	out := make([]searchResult, 0, len(scoredTools))
	for _, s := range scoredTools {
		out = append(out, searchResult{Name: s.tool.Name, Description: s.tool.Description, Category: s.tool.Category})
	}
	return out
}

// similarity is a lightweight word-overlap ratio used as a fallback when
// the query isn't a direct substring match: the fraction of query words
// that appear somewhere in the haystack.
func similarity(haystack, query string) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}
