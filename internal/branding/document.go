// Package branding rewrites the served application page with the Wintent look: a style
// override block and the uploaded favicon.
package branding

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page that can be mutated and rendered back.
type Document struct {
	root *html.Node
}

// ParseDocument parses r as a full HTML document.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("branding: parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseDocumentString is ParseDocument over a string.
func ParseDocumentString(s string) (*Document, error) {
	return ParseDocument(strings.NewReader(s))
}

// Head returns the <head> element, creating one under <html> when missing.
func (d *Document) Head() *html.Node {
	if head := findFirst(d.root, func(n *html.Node) bool { return isElement(n, atom.Head) }); head != nil {
		return head
	}

	htmlNode := findFirst(d.root, func(n *html.Node) bool { return isElement(n, atom.Html) })
	if htmlNode == nil {
		htmlNode = &html.Node{Type: html.ElementNode, DataAtom: atom.Html, Data: "html"}
		d.root.AppendChild(htmlNode)
	}
	head := &html.Node{Type: html.ElementNode, DataAtom: atom.Head, Data: "head"}
	htmlNode.InsertBefore(head, htmlNode.FirstChild)
	return head
}

// AppendToHead appends node as the last child of <head>.
func (d *Document) AppendToHead(node *html.Node) {
	d.Head().AppendChild(node)
}

// FindIconLink returns the first <link> whose rel attribute contains "icon".
func (d *Document) FindIconLink() *html.Node {
	return findFirst(d.root, func(n *html.Node) bool {
		if !isElement(n, atom.Link) {
			return false
		}
		rel, ok := Attr(n, "rel")
		return ok && strings.Contains(rel, "icon")
	})
}

// ElementsByID returns every element carrying id, in document order.
func (d *Document) ElementsByID(id string) []*html.Node {
	var found []*html.Node
	walk(d.root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if value, ok := Attr(n, "id"); ok && value == id {
			found = append(found, n)
		}
	})
	return found
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on failure.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key on n, replacing an existing value.
func SetAttr(n *html.Node, key, value string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// TextContent concatenates the text nodes below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
