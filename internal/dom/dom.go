// Package dom is the storefront's document model: a thin layer over
// golang.org/x/net/html nodes with CSS selector lookup and the handful of
// element operations the page pipeline needs.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page.
type Document struct {
	root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// QuerySelector returns the first element matching selector, or nil when
// nothing matches or the selector is invalid.
func (d *Document) QuerySelector(selector string) *html.Node {
	return QuerySelector(d.root, selector)
}

// Render serializes the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String serializes the document, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// QuerySelector returns the first element under n matching selector.
func QuerySelector(n *html.Node, selector string) *html.Node {
	if n == nil {
		return nil
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil
	}
	return cascadia.Query(n, sel)
}

// QuerySelectorAll returns every element under n matching selector.
func QuerySelectorAll(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(n, sel)
}

// NewElement creates a detached element with the given classes.
func NewElement(tag string, classes ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, c := range classes {
		AddClass(n, c)
	}
	return n
}

// NewText creates a text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Attr returns the value of an attribute and whether it is set.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

// Classes returns the element's class list.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// HasClass reports whether the element carries class c.
func HasClass(n *html.Node, c string) bool {
	return slices.Contains(Classes(n), c)
}

// AddClass adds c to the class list if missing.
func AddClass(n *html.Node, c string) {
	classes := Classes(n)
	if slices.Contains(classes, c) {
		return
	}
	SetAttr(n, "class", strings.Join(append(classes, c), " "))
}

// RemoveClass removes c from the class list. The class attribute is dropped
// when it becomes empty.
func RemoveClass(n *html.Node, c string) {
	classes := slices.DeleteFunc(Classes(n), func(s string) bool { return s == c })
	if len(classes) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(classes, " "))
}

// Clear detaches every child of n.
func Clear(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Append appends children to n in order.
func Append(n *html.Node, children ...*html.Node) {
	for _, c := range children {
		n.AppendChild(c)
	}
}

// SetText replaces n's children with a single text node.
func SetText(n *html.Node, s string) {
	Clear(n)
	n.AppendChild(NewText(s))
}

// SetInnerHTML replaces n's children with the parsed fragment.
func SetInnerHTML(n *html.Node, fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	Clear(n)
	Append(n, nodes...)
	return nil
}

// TextContent concatenates all text below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Closest returns the nearest ancestor-or-self element carrying class c.
func Closest(n *html.Node, c string) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && HasClass(n, c) {
			return n
		}
	}
	return nil
}

// ElementChildren returns n's element children.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// OuterHTML serializes a single node.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}
