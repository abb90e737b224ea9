package scraper

import (
	"sort"
	"strings"
)

// QueryVariations expands a search term into near-synonyms that surface
// listings a single phrasing misses. The original term is always first.
func QueryVariations(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	candidates := []string{
		query + " business",
		query + " company",
		query + " services",
		strings.ReplaceAll(query, " ", " and "),
	}
	words := strings.Fields(query)
	for i := range words {
		candidates = append(candidates, withWord(words, i, togglePlural(words[i])))
	}

	seen := map[string]bool{strings.ToLower(query): true}
	var extra []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append([]string{query}, extra...)
}

// togglePlural adds or drops a trailing s, keeping the word's own casing.
func togglePlural(word string) string {
	if strings.HasSuffix(word, "s") || strings.HasSuffix(word, "S") {
		return word[:len(word)-1]
	}
	return word + "s"
}

func withWord(words []string, i int, repl string) string {
	out := make([]string, len(words))
	copy(out, words)
	out[i] = repl
	return strings.Join(out, " ")
}
