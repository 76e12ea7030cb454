package dom

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Listener is called when a click reaches the node it was registered on.
// target is the node the click was dispatched to.
type Listener func(target *html.Node)

// Container is the host-owned element that trial markup is injected into.
// All tree mutations go through it so observers see every change.
type Container struct {
	mu        sync.Mutex
	root      *html.Node
	listeners map[*html.Node][]Listener
	observers []func()
}

// NewContainer creates an empty <div> container with the given id.
func NewContainer(id string) *Container {
	return &Container{
		root: &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
			Attr:     []html.Attribute{{Key: "id", Val: id}},
		},
		listeners: make(map[*html.Node][]Listener),
	}
}

// ID returns the container element id.
func (c *Container) ID() string {
	v, _ := getAttr(c.root, "id")
	return v
}

// OnMutate registers fn to be called after every mutation of the tree.
func (c *Container) OnMutate(fn func()) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Container) notify() {
	c.mu.Lock()
	observers := make([]func(), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// SetInnerHTML replaces the container's children with the parsed markup.
// Listeners registered on the removed nodes are dropped. On a parse error
// the container is left untouched.
func (c *Container) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return fmt.Errorf("failed to parse markup: %w", err)
	}

	c.mu.Lock()
	c.removeChildrenLocked()
	for _, n := range nodes {
		c.root.AppendChild(n)
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// Clear removes every child of the container.
func (c *Container) Clear() {
	c.mu.Lock()
	c.removeChildrenLocked()
	c.mu.Unlock()

	c.notify()
}

func (c *Container) removeChildrenLocked() {
	for child := c.root.FirstChild; child != nil; {
		next := child.NextSibling
		c.root.RemoveChild(child)
		c.forgetLocked(child)
		child = next
	}
}

func (c *Container) forgetLocked(n *html.Node) {
	delete(c.listeners, n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.forgetLocked(child)
	}
}

// Empty reports whether the container has no children.
func (c *Container) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root.FirstChild == nil
}

// Contains reports whether n is attached below the container.
func (c *Container) Contains(n *html.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containsLocked(n)
}

func (c *Container) containsLocked(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == c.root {
			return n != c.root
		}
	}
	return false
}

// ElementByID returns the first element below the container with the given id.
func (c *Container) ElementByID(id string) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var found *html.Node
	walk(c.root, func(n *html.Node) bool {
		if n != c.root && n.Type == html.ElementNode {
			if v, ok := getAttr(n, "id"); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// ElementsByTag returns every element below n with the given tag name,
// in document order.
func (c *Container) ElementsByTag(n *html.Node, tag string) []*html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*html.Node
	walk(n, func(el *html.Node) bool {
		if el != n && el.Type == html.ElementNode && el.Data == tag {
			out = append(out, el)
		}
		return true
	})
	return out
}

// FirstElementChild returns the first element child of n, or nil.
func (c *Container) FirstElementChild(n *html.Node) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return child
		}
	}
	return nil
}

// AddEventListener registers l for clicks reaching n.
func (c *Container) AddEventListener(n *html.Node, l Listener) {
	c.mu.Lock()
	c.listeners[n] = append(c.listeners[n], l)
	c.mu.Unlock()
}

// Click dispatches a click to target. The click bubbles from target up to
// the container, calling listeners on the way. Clicks on (or inside) a
// disabled form control are swallowed. Returns whether the click was
// dispatched.
func (c *Container) Click(target *html.Node) bool {
	c.mu.Lock()
	if target == nil || !c.containsLocked(target) {
		c.mu.Unlock()
		return false
	}

	var chain []Listener
	for n := target; n != nil; n = n.Parent {
		if isDisabledControl(n) {
			c.mu.Unlock()
			return false
		}
		chain = append(chain, c.listeners[n]...)
		if n == c.root {
			break
		}
	}
	c.mu.Unlock()

	for _, l := range chain {
		l(target)
	}
	return true
}

// HTML renders the container's children.
func (c *Container) HTML() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	for child := c.root.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&buf, child); err != nil {
			// Render only fails on writer errors; bytes.Buffer has none.
			panic(err)
		}
	}
	return buf.String()
}

// Text returns the concatenated text content of n.
func (c *Container) Text(n *html.Node) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	walk(n, func(el *html.Node) bool {
		if el.Type == html.TextNode {
			sb.WriteString(el.Data)
		}
		return true
	})
	return sb.String()
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

func isDisabledControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Button, atom.Input, atom.Select, atom.Textarea:
		_, disabled := getAttr(n, "disabled")
		return disabled
	}
	return false
}

// FragmentHasID reports whether markup, parsed as the content of a <div>,
// contains an element with the given id.
func FragmentHasID(markup, id string) (bool, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return false, fmt.Errorf("failed to parse markup: %w", err)
	}
	for _, n := range nodes {
		found := false
		walk(n, func(el *html.Node) bool {
			if el.Type == html.ElementNode {
				if v, ok := getAttr(el, "id"); ok && v == id {
					found = true
					return false
				}
			}
			return true
		})
		if found {
			return true, nil
		}
	}
	return false, nil
}
