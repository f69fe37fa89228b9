// Package render turns a document delta into its publishable HTML form.
package render

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"docsync-server/delta"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML renders Quill-style deltas into an HTML fragment.
type HTML struct{}

// NewHTML returns an HTML renderer.
func NewHTML() *HTML {
	return &HTML{}
}

type line struct {
	inlines []delta.Op
	attrs   map[string]any
}

// Render implements session.Renderer.
func (h *HTML) Render(d *delta.Delta) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("render: nil delta")
	}
	for _, op := range d.Ops {
		if op.Kind() != delta.KindInsert {
			return nil, fmt.Errorf("render: document contains a %s op", op.Kind())
		}
	}

	var buf bytes.Buffer
	for _, n := range renderBlocks(splitLines(d)) {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func splitLines(d *delta.Delta) []line {
	var lines []line
	var current line

	for _, op := range d.Ops {
		s, ok := op.Insert.(string)
		if !ok {
			current.inlines = append(current.inlines, op)
			continue
		}
		parts := strings.Split(s, "\n")
		for i, part := range parts {
			if part != "" {
				current.inlines = append(current.inlines, delta.Op{Insert: part, Attributes: op.Attributes})
			}
			if i < len(parts)-1 {
				current.attrs = op.Attributes
				lines = append(lines, current)
				current = line{}
			}
		}
	}
	if len(current.inlines) > 0 {
		lines = append(lines, current)
	}
	return lines
}

func renderBlocks(lines []line) []*html.Node {
	var nodes []*html.Node
	var list *html.Node
	var listType string
	var pre *html.Node

	for _, l := range lines {
		if isCodeBlock(l.attrs["code-block"]) {
			list, listType = nil, ""
			if pre == nil {
				pre = element("pre", "class", "ql-syntax")
				nodes = append(nodes, pre)
			} else {
				pre.AppendChild(text("\n"))
			}
			pre.AppendChild(text(plainText(l.inlines)))
			continue
		}
		pre = nil

		if kind, ok := l.attrs["list"].(string); ok && kind != "" {
			tag := "ul"
			if kind == "ordered" {
				tag = "ol"
			}
			if list == nil || listType != tag {
				list = element(tag)
				listType = tag
				nodes = append(nodes, list)
			}
			li := element("li", blockAttrs(l.attrs, kind)...)
			appendInlines(li, l.inlines)
			list.AppendChild(li)
			continue
		}
		list, listType = nil, ""

		tag := "p"
		if level, ok := headerLevel(l.attrs["header"]); ok {
			tag = fmt.Sprintf("h%d", level)
		} else if quote, _ := l.attrs["blockquote"].(bool); quote {
			tag = "blockquote"
		}
		block := element(tag, blockAttrs(l.attrs, "")...)
		appendInlines(block, l.inlines)
		nodes = append(nodes, block)
	}
	return nodes
}

// isCodeBlock accepts both true and a language name such as "plain".
func isCodeBlock(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	}
	return false
}

func headerLevel(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		if i, isInt := v.(int); isInt {
			f, ok = float64(i), true
		}
	}
	if !ok || f < 1 || f > 6 {
		return 0, false
	}
	return int(f), true
}

func blockAttrs(attrs map[string]any, listKind string) []string {
	var classes []string
	if align, ok := attrs["align"].(string); ok && align != "" {
		classes = append(classes, "ql-align-"+align)
	}
	if indent, ok := attrs["indent"].(float64); ok && indent > 0 {
		classes = append(classes, fmt.Sprintf("ql-indent-%d", int(indent)))
	}
	var out []string
	if len(classes) > 0 {
		out = append(out, "class", strings.Join(classes, " "))
	}
	if listKind == "checked" || listKind == "unchecked" {
		out = append(out, "data-list", listKind)
	}
	return out
}

func appendInlines(parent *html.Node, inlines []delta.Op) {
	if len(inlines) == 0 {
		parent.AppendChild(element("br"))
		return
	}
	for _, op := range inlines {
		parent.AppendChild(renderInline(op))
	}
}

func renderInline(op delta.Op) *html.Node {
	var node *html.Node
	switch v := op.Insert.(type) {
	case string:
		node = text(v)
	case map[string]any:
		node = renderEmbed(v)
	default:
		node = text("")
	}

	a := op.Attributes
	if len(a) == 0 {
		return node
	}

	if style := inlineStyle(a); style != "" {
		node = wrap(element("span", "style", style), node)
	}
	if script, ok := a["script"].(string); ok {
		switch script {
		case "sub":
			node = wrap(element("sub"), node)
		case "super":
			node = wrap(element("sup"), node)
		}
	}
	for _, f := range []struct{ attr, tag string }{
		{"code", "code"},
		{"strike", "s"},
		{"underline", "u"},
		{"italic", "em"},
		{"bold", "strong"},
	} {
		if on, _ := a[f.attr].(bool); on {
			node = wrap(element(f.tag), node)
		}
	}
	if href, ok := a["link"].(string); ok && href != "" {
		node = wrap(element("a", "href", safeURL(href), "rel", "noopener noreferrer", "target", "_blank"), node)
	}
	return node
}

func renderEmbed(embed map[string]any) *html.Node {
	keys := make([]string, 0, len(embed))
	for k := range embed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, _ := embed[k].(string)
		switch k {
		case "image":
			return element("img", "src", safeURL(value))
		case "video":
			return element("iframe", "class", "ql-video", "frameborder", "0", "allowfullscreen", "true", "src", safeURL(value))
		case "formula":
			return wrap(element("span", "class", "ql-formula"), text(value))
		}
	}
	return text("")
}

func inlineStyle(a map[string]any) string {
	var parts []string
	if color, ok := a["color"].(string); ok && color != "" {
		parts = append(parts, "color: "+cssValue(color))
	}
	if bg, ok := a["background"].(string); ok && bg != "" {
		parts = append(parts, "background-color: "+cssValue(bg))
	}
	return strings.Join(parts, "; ")
}

func cssValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '"', '\'', '<', '>', '(', ')', '\\':
			return -1
		}
		return r
	}, v)
}

func safeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return u.String()
	}
	return "#"
}

func plainText(inlines []delta.Op) string {
	var b strings.Builder
	for _, op := range inlines {
		if s, ok := op.Insert.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func wrap(parent, child *html.Node) *html.Node {
	parent.AppendChild(child)
	return parent
}
