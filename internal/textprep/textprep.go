// Package textprep normalizes raw text before it is handed to the
// analysis collaborator: markup is stripped and whitespace collapsed so
// the model sees prose, not tags.
package textprep

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts visible text from an HTML fragment. Script and
// style bodies are dropped. Input that is not HTML passes through
// unchanged apart from whitespace normalization.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return Collapse(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return Collapse(s)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return Collapse(sb.String())
}

// Collapse trims the string and folds runs of whitespace into single
// spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
