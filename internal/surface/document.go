// Package surface owns the widget's DOM: it creates or adopts the fixed set
// of elements, applies the configuration to them and renders messages.
//
// The page is modelled with golang.org/x/net/html nodes so host markup can be
// parsed, adopted and rendered back without a browser.
package surface

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page plus the bits of browser state the widget
// touches: which element has focus and where each scrollable log is scrolled.
type Document struct {
	root     *html.Node
	focused  *html.Node
	scrolled map[*html.Node]*html.Node
}

// NewDocument returns an empty page.
func NewDocument() *Document {
	d, err := ParseDocument(strings.NewReader(""))
	if err != nil {
		panic("surface: parsing empty document: " + err.Error())
	}
	return d
}

// ParseDocument parses host markup. Elements carrying the widget's ids are
// adopted by Ensure instead of being created.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing document")
	}
	return &Document{root: root, scrolled: make(map[*html.Node]*html.Node)}, nil
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	return find(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

func (d *Document) ElementByID(id string) *html.Node {
	return find(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	})
}

// CountID counts elements carrying id. A well-formed page has at most one.
func (d *Document) CountID(id string) int {
	count := 0
	walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			count++
		}
	})
	return count
}

func (d *Document) Focus(n *html.Node) { d.focused = n }

func (d *Document) Focused() *html.Node { return d.focused }

// ScrollTo records that container was scrolled to show child.
func (d *Document) ScrollTo(container, child *html.Node) {
	d.scrolled[container] = child
}

// ScrolledTo returns the child container was last scrolled to.
func (d *Document) ScrolledTo(container *html.Node) *html.Node {
	return d.scrolled[container]
}

// Render writes the whole page.
func (d *Document) Render(w io.Writer) error {
	return errors.Wrap(html.Render(w, d.root), "rendering document")
}

// RenderElement writes one element and its subtree.
func RenderElement(w io.Writer, n *html.Node) error {
	if n == nil {
		return nil
	}
	return errors.Wrap(html.Render(w, n), "rendering element")
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
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

func newElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

func setText(n *html.Node, text string) {
	removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

// display returns the value of the display declaration in n's inline style.
func display(n *html.Node) string {
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "display") {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// setDisplay replaces the display declaration of n's inline style, keeping
// any other declaration the host put there.
func setDisplay(n *html.Node, value string) {
	var decls []string
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		decls = append(decls, decl)
	}
	if value != "" {
		decls = append(decls, "display:"+value)
	}
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", strings.Join(decls, ";")+";")
}

func visible(n *html.Node) bool {
	return n != nil && display(n) != "none"
}
