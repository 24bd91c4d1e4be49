package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kailas-cloud/siteqa/internal/domain/text"
)

// contentRoots are tried in order; the first element found supplies the page text.
var contentRoots = []atom.Atom{atom.Main, atom.Article, atom.Body}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// HTMLPage is the text and outgoing links of a parsed page.
type HTMLPage struct {
	Text  string
	Links []*url.URL
}

// HTML parses body and returns the main-content text and every a[href] resolved
// against base. Unparseable hrefs are dropped.
func (e *Extractor) HTML(base *url.URL, body []byte) HTMLPage {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return HTMLPage{}
	}

	page := HTMLPage{Links: links(doc, base)}
	if e.cfg.Readability {
		if article, err := readability.FromReader(bytes.NewReader(body), base); err == nil {
			page.Text = text.NormalizeWhitespace(article.TextContent)
		}
	}
	if page.Text == "" {
		page.Text = mainText(doc)
	}
	return page
}

func mainText(doc *html.Node) string {
	for _, a := range contentRoots {
		if root := findFirst(doc, a); root != nil {
			var b strings.Builder
			collectText(root, &b)
			return text.NormalizeWhitespace(b.String())
		}
	}
	return ""
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if t := text.NormalizeWhitespace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func links(doc *html.Node, base *url.URL) []*url.URL {
	var out []*url.URL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" {
					break
				}
				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				if base != nil {
					ref = base.ResolveReference(ref)
				}
				if ref.Scheme == "http" || ref.Scheme == "https" {
					out = append(out, ref)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}
