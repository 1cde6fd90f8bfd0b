package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Path is the sequence of raw child indices from the document node down to
// a node. [1, 0] means root -> child[1] -> child[0].
type Path []int

func (p Path) String() string {
	var b strings.Builder
	for _, i := range p {
		fmt.Fprintf(&b, "/%d", i)
	}
	return b.String()
}

// PathTo computes the path from root to target.
func PathTo(root, target *html.Node) (Path, error) {
	var p Path
	for cur := target; cur != root; cur = cur.Parent {
		if cur.Parent == nil {
			return nil, errors.New("dom: target node is not a descendant of root")
		}
		p = append(Path{ChildIndex(cur)}, p...)
	}
	return p, nil
}

// NodeAt follows path from root, or returns nil when it leaves the tree.
func NodeAt(root *html.Node, path Path) *html.Node {
	cur := root
	for _, i := range path {
		cur = ChildAt(cur, i)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ChildIndex returns n's position among all of its parent's children
// (text and comment nodes included), or -1.
func ChildIndex(n *html.Node) int {
	if n == nil || n.Parent == nil {
		return -1
	}
	i := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			return i
		}
		i++
	}
	return -1
}

// ChildAt returns the i-th child of parent counting all node types.
func ChildAt(parent *html.Node, i int) *html.Node {
	if i < 0 {
		return nil
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if i == 0 {
			return c
		}
		i--
	}
	return nil
}

// InsertAt inserts child as parent's i-th child (raw index); out-of-range
// indices append.
func InsertAt(parent, child *html.Node, i int) {
	if ref := ChildAt(parent, i); ref != nil {
		parent.InsertBefore(child, ref)
		return
	}
	parent.AppendChild(child)
}

// ElementChildren returns parent's element children in order.
func ElementChildren(parent *html.Node) []*html.Node {
	var out []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// ElementIndex returns n's position among its parent's element children.
func ElementIndex(n *html.Node) int {
	if n == nil || n.Parent == nil {
		return -1
	}
	for i, c := range ElementChildren(n.Parent) {
		if c == n {
			return i
		}
	}
	return -1
}

// InsertAtElement places child before parent's k-th element child, not
// counting child itself; k past the end appends. child is detached first
// when it already has a parent.
func InsertAtElement(parent, child *html.Node, k int) {
	var ref *html.Node
	i := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c == child {
			continue
		}
		if i == k {
			ref = c
			break
		}
		i++
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	if ref != nil && k >= 0 {
		parent.InsertBefore(child, ref)
		return
	}
	parent.AppendChild(child)
}

// Detach removes n from its parent and returns the former parent and raw
// index. Detaching an orphan returns (nil, -1).
func Detach(n *html.Node) (*html.Node, int) {
	if n == nil || n.Parent == nil {
		return nil, -1
	}
	parent, idx := n.Parent, ChildIndex(n)
	parent.RemoveChild(n)
	return parent, idx
}

// Contains reports whether n is ancestor or one of its descendants.
func Contains(ancestor, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Closest returns the nearest of n and its ancestors satisfying pred.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// ElementOf returns n itself for elements and the parent element otherwise.
func ElementOf(n *html.Node) *html.Node {
	return Closest(n, func(c *html.Node) bool { return c.Type == html.ElementNode })
}

// IsEditableRegion reports whether n itself is a contenteditable root.
func IsEditableRegion(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v, ok := Attr(n, "contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(v)
	return v == "" || v == "true" || v == "plaintext-only"
}

// InEditable reports whether n is inside (or is) a contenteditable region.
func InEditable(n *html.Node) bool {
	return Closest(n, IsEditableRegion) != nil
}

// OuterHTML renders n including itself.
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InnerHTML renders n's children.
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// ParseFragment parses src in the context of the element ctx.
func ParseFragment(ctx *html.Node, src string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// ParseElement parses src in the context of ctx and returns its single
// top-level element. Surrounding whitespace is ignored.
func ParseElement(ctx *html.Node, src string) (*html.Node, error) {
	nodes, err := ParseFragment(ctx, src)
	if err != nil {
		return nil, err
	}
	var el *html.Node
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode && el == nil:
			el = n
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
		default:
			return nil, fmt.Errorf("dom: expected a single element, got extra %q", n.Data)
		}
	}
	if el == nil {
		return nil, errors.New("dom: no element in fragment")
	}
	return el, nil
}

// SetInnerHTML replaces n's children with the parsed fragment src.
func SetInnerHTML(n *html.Node, src string) error {
	nodes, err := ParseFragment(n, src)
	if err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Attr returns the value of key and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key to val, appending the attribute when absent.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key if present.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// HasClass reports whether n's class list contains name.
func HasClass(n *html.Node, name string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v, _ := Attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == name {
			return true
		}
	}
	return false
}

// AttrState records an attribute's value and presence so it can be
// restored exactly.
type AttrState struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// CaptureAttr reads key's current state.
func CaptureAttr(n *html.Node, key string) AttrState {
	v, ok := Attr(n, key)
	return AttrState{Value: v, Present: ok}
}

// RestoreAttr writes a captured state back.
func RestoreAttr(n *html.Node, key string, s AttrState) {
	if !s.Present {
		RemoveAttr(n, key)
		return
	}
	SetAttr(n, key, s.Value)
}
