package enrich

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// placeholders are addresses commonly left in templates.
var placeholders = []string{"example.", "test.", "email@", "user@", "@sentry", ".png", ".jpg"}

// ExtractEmails returns the unique addresses found in an HTML page, both in
// mailto: links and in visible text, sorted.
func ExtractEmails(page string) []string {
	if page == "" {
		return nil
	}
	found := make(map[string]string)
	add := func(s string) {
		for _, m := range emailPattern.FindAllString(s, -1) {
			lower := strings.ToLower(m)
			if isPlaceholder(lower) {
				continue
			}
			if _, ok := found[lower]; !ok {
				found[lower] = m
			}
		}
	}

	z := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			add(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					href := string(val)
					if strings.HasPrefix(strings.ToLower(href), "mailto:") {
						addr := href[len("mailto:"):]
						if i := strings.IndexByte(addr, '?'); i >= 0 {
							addr = addr[:i]
						}
						add(addr)
					}
				}
				if !more {
					break
				}
			}
		}
	}

	out := make([]string, 0, len(found))
	for _, v := range found {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isPlaceholder(lower string) bool {
	for _, p := range placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
