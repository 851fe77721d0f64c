package documents

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

type titles []Document

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Search returns the documents whose title fuzzily matches query, best
// match first. An empty query returns docs unchanged.
func Search(docs []Document, query string) []Document {
	query = strings.TrimSpace(query)
	if query == "" {
		return docs
	}

	matches := fuzzy.FindFrom(query, titles(docs))
	out := make([]Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, docs[m.Index])
	}
	return out
}

// ByCategory groups docs by display category, keeping their order.
func ByCategory(docs []Document) map[string][]Document {
	groups := make(map[string][]Document)
	for _, d := range docs {
		groups[d.Category] = append(groups[d.Category], d)
	}
	return groups
}

// MustRead returns the must-read documents, important ones first by rank.
func MustRead(docs []Document) []Document {
	var out []Document
	for _, d := range docs {
		if d.MustRead {
			out = append(out, d)
		}
	}

	rank := func(d Document) int {
		if d.ImportantRank == nil {
			return int(^uint(0) >> 1)
		}
		return *d.ImportantRank
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}
