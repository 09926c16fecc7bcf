package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Document is a response normalised for scoring
type Document struct {
	Text  string   // Visible text; paragraphs separated by blank lines
	Links []string // Absolute http(s) links found in markup, deduplicated
	HTML  bool     // Whether the input was parsed as HTML
}

var htmlTag = regexp.MustCompile(`(?i)<\s*(?:html|body|p|div|span|br|ul|ol|li|a\s|h[1-6]|table|tr|td|strong|em|b|i|section|article)\b[^>]*>`)

// LooksLikeHTML reports whether input contains recognisable markup
func LooksLikeHTML(input string) bool {
	return htmlTag.MatchString(input)
}

// PlainText returns the visible text of input
func PlainText(input string) string {
	return Normalize(input).Text
}

// Normalize strips markup when the input looks like HTML and returns it unchanged otherwise
func Normalize(input string) Document {
	if !LooksLikeHTML(input) {
		return Document{Text: strings.TrimSpace(input)}
	}

	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return Document{Text: strings.TrimSpace(input)}
	}

	w := &textWalker{seen: make(map[string]bool)}
	w.walk(doc)
	w.flush()

	return Document{
		Text:  strings.Join(w.paragraphs, "\n\n"),
		Links: w.links,
		HTML:  true,
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "section": true, "article": true, "blockquote": true,
	"header": true, "footer": true, "main": true, "pre": true, "dd": true, "dt": true,
}

type textWalker struct {
	current    strings.Builder
	paragraphs []string
	links      []string
	seen       map[string]bool
}

func (w *textWalker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "iframe", "head", "template":
			return
		case "a":
			w.addLink(attr(n, "href"))
		}
		if blockElements[n.Data] {
			w.flush()
		}
	}

	if n.Type == html.TextNode {
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			if w.current.Len() > 0 && !strings.HasPrefix(text, ".") && !strings.HasPrefix(text, ",") {
				w.current.WriteString(" ")
			}
			w.current.WriteString(text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		w.flush()
	}
}

func (w *textWalker) flush() {
	if p := strings.TrimSpace(w.current.String()); p != "" {
		w.paragraphs = append(w.paragraphs, p)
	}
	w.current.Reset()
}

// addLink keeps absolute http(s) links only; responses have no base URL to resolve against
func (w *textWalker) addLink(href string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return
	}
	u.Fragment = ""
	link := u.String()
	if !w.seen[link] {
		w.seen[link] = true
		w.links = append(w.links, link)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
