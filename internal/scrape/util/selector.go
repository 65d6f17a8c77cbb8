package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor pulls one value out of a node tree.
type Extractor interface {
	Extract(root *goquery.Selection) (string, bool)
}

// Text extracts the cleaned text of the first node matching a CSS selector.
type Text string

func (s Text) Extract(root *goquery.Selection) (string, bool) {
	sel := root.Find(string(s)).First()
	if sel.Length() == 0 {
		return "", false
	}
	v := CleanText(sel.Text())
	return v, v != ""
}

// Block is like Text but keeps line breaks between block elements, for
// descriptions.
type Block string

func (s Block) Extract(root *goquery.Selection) (string, bool) {
	sel := root.Find(string(s)).First()
	if sel.Length() == 0 {
		return "", false
	}
	v := BlockText(sel)
	return v, v != ""
}

// Attr extracts an attribute of the first node matching Selector. An empty
// Selector reads the attribute from root itself.
type Attr struct {
	Selector string
	Name     string
}

func (a Attr) Extract(root *goquery.Selection) (string, bool) {
	sel := root
	if a.Selector != "" {
		sel = root.Find(a.Selector).First()
	}
	v, ok := sel.Attr(a.Name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Chain tries each step in order and returns the first accepted value, or
// Default when none match.
type Chain struct {
	Steps   []Extractor
	Accept  func(string) bool
	Default string
}

func (c Chain) Eval(root *goquery.Selection) string {
	if v, ok := c.Find(root); ok {
		return v
	}
	return c.Default
}

// Find is Eval without the default.
func (c Chain) Find(root *goquery.Selection) (string, bool) {
	if root == nil {
		return "", false
	}
	for _, step := range c.Steps {
		v, ok := step.Extract(root)
		if !ok {
			continue
		}
		if c.Accept != nil && !c.Accept(v) {
			continue
		}
		return v, true
	}
	return "", false
}

// TextChain is a Chain of Text steps.
func TextChain(selectors ...string) Chain {
	steps := make([]Extractor, 0, len(selectors))
	for _, s := range selectors {
		steps = append(steps, Text(s))
	}
	return Chain{Steps: steps}
}

// Lookup returns the first non-empty match among equivalent selectors.
func Lookup(root *goquery.Selection, selectors ...string) (*goquery.Selection, bool) {
	if root == nil {
		return nil, false
	}
	for _, s := range selectors {
		sel := root.Find(s)
		if sel.Length() > 0 {
			return sel, true
		}
	}
	return nil, false
}

// MinLen accepts values longer than n bytes.
func MinLen(n int) func(string) bool {
	return func(s string) bool { return len(s) > n }
}

// HasDigit accepts values containing at least one digit.
func HasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// BlockText renders a node's text with a newline after each block-level
// element so labelled lines such as "Work Location: Berlin" survive.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				return
			}
			name := goquery.NodeName(c)
			if name == "br" {
				b.WriteString("\n")
				return
			}
			walk(c)
			if blockElements[name] {
				b.WriteString("\n")
			}
		})
	}
	walk(sel)
	return CleanBlock(b.String())
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "tr": true,
}
