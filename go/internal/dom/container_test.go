package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestSetInnerHTMLReplacesChildren(t *testing.T) {
	c := NewContainer("display")

	if err := c.SetInnerHTML(`<p id="a">first</p>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	if err := c.SetInnerHTML(`<p id="b">second</p>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}

	if c.ElementByID("a") != nil {
		t.Error("expected first markup to be gone")
	}
	b := c.ElementByID("b")
	if b == nil {
		t.Fatal("expected element b")
	}
	if got := c.Text(b); got != "second" {
		t.Errorf("Text = %q, want %q", got, "second")
	}
	if got, want := c.HTML(), `<p id="b">second</p>`; got != want {
		t.Errorf("HTML = %q, want %q", got, want)
	}
}

func TestClickBubblesToAncestors(t *testing.T) {
	c := NewContainer("display")
	if err := c.SetInnerHTML(`<div id="outer"><span id="inner">x</span></div>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	outer := c.ElementByID("outer")
	inner := c.ElementByID("inner")

	var order []string
	c.AddEventListener(outer, func(target *html.Node) {
		if target != inner {
			t.Errorf("listener target = %v, want inner", target)
		}
		order = append(order, "outer")
	})
	c.AddEventListener(inner, func(*html.Node) { order = append(order, "inner") })

	if !c.Click(inner) {
		t.Fatal("expected click to be dispatched")
	}
	if got := strings.Join(order, ","); got != "inner,outer" {
		t.Errorf("dispatch order = %q, want %q", got, "inner,outer")
	}
}

func TestClickOnDisabledControlIsSwallowed(t *testing.T) {
	c := NewContainer("display")
	if err := c.SetInnerHTML(`<div id="wrap"><button id="btn"><b id="label">Go</b></button></div>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	wrap := c.ElementByID("wrap")
	btn := c.ElementByID("btn")

	clicks := 0
	c.AddEventListener(wrap, func(*html.Node) { clicks++ })

	c.SetAttr(btn, "disabled", "disabled")

	if c.Click(btn) {
		t.Error("click on disabled button should not dispatch")
	}
	if c.Click(c.ElementByID("label")) {
		t.Error("click inside disabled button should not dispatch")
	}
	if clicks != 0 {
		t.Errorf("clicks = %d, want 0", clicks)
	}
}

func TestClearDropsListeners(t *testing.T) {
	c := NewContainer("display")
	if err := c.SetInnerHTML(`<button id="btn">Go</button>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	btn := c.ElementByID("btn")
	c.AddEventListener(btn, func(*html.Node) { t.Error("listener on cleared node was called") })

	c.Clear()

	if !c.Empty() {
		t.Error("expected empty container")
	}
	if c.Click(btn) {
		t.Error("click on detached node should not dispatch")
	}
}

func TestClassAndStyleHelpers(t *testing.T) {
	c := NewContainer("display")
	if err := c.SetInnerHTML(`<div id="s" class="a" style="display: inline-block; margin: 0px 8px"></div>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	s := c.ElementByID("s")

	c.AddClass(s, "responded")
	c.AddClass(s, "responded")
	if got, _ := c.Attr(s, "class"); got != "a responded" {
		t.Errorf("class = %q, want %q", got, "a responded")
	}
	if !c.HasClass(s, "responded") {
		t.Error("HasClass(responded) = false")
	}

	c.SetStyle(s, "visibility", "hidden")
	c.SetStyle(s, "margin", "4px")
	if got, _ := c.Attr(s, "style"); got != "display: inline-block; margin: 4px; visibility: hidden" {
		t.Errorf("style = %q", got)
	}
	if got := c.Style(s, "visibility"); got != "hidden" {
		t.Errorf("Style(visibility) = %q, want hidden", got)
	}
}

func TestOnMutateObservesChanges(t *testing.T) {
	c := NewContainer("display")
	mutations := 0
	c.OnMutate(func() { mutations++ })

	if err := c.SetInnerHTML(`<div id="s"></div>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	c.SetAttr(c.ElementByID("s"), "data-x", "1")
	c.Clear()

	if mutations != 3 {
		t.Errorf("mutations = %d, want 3", mutations)
	}
}
