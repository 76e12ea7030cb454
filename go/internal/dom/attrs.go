package dom

import (
	"strings"

	"golang.org/x/net/html"
)

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Attr returns the value of attribute key on n.
func (c *Container) Attr(n *html.Node, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return getAttr(n, key)
}

// SetAttr sets attribute key on n, replacing any existing value.
func (c *Container) SetAttr(n *html.Node, key, val string) {
	c.mu.Lock()
	setAttr(n, key, val)
	c.mu.Unlock()

	c.notify()
}

// HasClass reports whether n carries class in its class list.
func (c *Container) HasClass(n *html.Node, class string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, _ := getAttr(n, "class")
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

// AddClass appends class to n's class list unless already present.
func (c *Container) AddClass(n *html.Node, class string) {
	c.mu.Lock()
	v, _ := getAttr(n, "class")
	fields := strings.Fields(v)
	for _, f := range fields {
		if f == class {
			c.mu.Unlock()
			return
		}
	}
	setAttr(n, "class", strings.Join(append(fields, class), " "))
	c.mu.Unlock()

	c.notify()
}

// Style returns the value of CSS property prop from n's inline style.
func (c *Container) Style(n *html.Node, prop string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, _ := getAttr(n, "style")
	for _, decl := range parseStyle(v) {
		if decl[0] == prop {
			return decl[1]
		}
	}
	return ""
}

// SetStyle sets CSS property prop in n's inline style, keeping the order of
// the other declarations.
func (c *Container) SetStyle(n *html.Node, prop, val string) {
	c.mu.Lock()
	v, _ := getAttr(n, "style")
	decls := parseStyle(v)
	replaced := false
	for i := range decls {
		if decls[i][0] == prop {
			decls[i][1] = val
			replaced = true
		}
	}
	if !replaced {
		decls = append(decls, [2]string{prop, val})
	}
	setAttr(n, "style", formatStyle(decls))
	c.mu.Unlock()

	c.notify()
}

func parseStyle(s string) [][2]string {
	var decls [][2]string
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		if prop == "" {
			continue
		}
		decls = append(decls, [2]string{prop, strings.TrimSpace(val)})
	}
	return decls
}

func formatStyle(decls [][2]string) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d[0] + ": " + d[1]
	}
	return strings.Join(parts, "; ")
}
