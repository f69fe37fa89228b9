package render

import (
	"strings"
	"testing"

	"docsync-server/delta"
)

func renderString(t *testing.T, ops ...delta.Op) string {
	t.Helper()
	out, err := NewHTML().Render(delta.New(ops...))
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	return string(out)
}

func TestRender_Paragraphs(t *testing.T) {
	got := renderString(t, delta.Op{Insert: "Hello\nWorld\n"})
	want := "<p>Hello</p><p>World</p>"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_TrailingTextWithoutNewline(t *testing.T) {
	got := renderString(t, delta.Op{Insert: "Hello"})
	if got != "<p>Hello</p>" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRender_HeaderAndBold(t *testing.T) {
	got := renderString(t,
		delta.Op{Insert: "Title"},
		delta.Op{Insert: "\n", Attributes: map[string]any{"header": float64(1)}},
		delta.Op{Insert: "Hi "},
		delta.Op{Insert: "there", Attributes: map[string]any{"bold": true}},
		delta.Op{Insert: "\n"},
	)
	want := "<h1>Title</h1><p>Hi <strong>there</strong></p>"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_Lists(t *testing.T) {
	bullet := map[string]any{"list": "bullet"}
	ordered := map[string]any{"list": "ordered"}

	got := renderString(t,
		delta.Op{Insert: "a"},
		delta.Op{Insert: "\n", Attributes: bullet},
		delta.Op{Insert: "b"},
		delta.Op{Insert: "\n", Attributes: bullet},
		delta.Op{Insert: "c"},
		delta.Op{Insert: "\n", Attributes: ordered},
	)
	want := "<ul><li>a</li><li>b</li></ul><ol><li>c</li></ol>"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_CodeBlock(t *testing.T) {
	code := map[string]any{"code-block": true}
	got := renderString(t,
		delta.Op{Insert: "a"},
		delta.Op{Insert: "\n", Attributes: code},
		delta.Op{Insert: "b"},
		delta.Op{Insert: "\n", Attributes: code},
	)
	want := "<pre class=\"ql-syntax\">a\nb</pre>"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_EscapesText(t *testing.T) {
	got := renderString(t, delta.Op{Insert: "<script>alert(1)</script>\n"})
	if strings.Contains(got, "<script>") {
		t.Errorf("Render() did not escape markup: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("Render() = %q, want escaped script tag", got)
	}
}

func TestRender_UnsafeLink(t *testing.T) {
	got := renderString(t,
		delta.Op{Insert: "x", Attributes: map[string]any{"link": "javascript:alert(1)"}},
		delta.Op{Insert: "\n"},
	)
	if strings.Contains(got, "javascript:") {
		t.Errorf("Render() kept unsafe link: %q", got)
	}
	if !strings.Contains(got, `href="#"`) {
		t.Errorf("Render() = %q, want neutralized href", got)
	}
}

func TestRender_EmptyLineAndEmbed(t *testing.T) {
	got := renderString(t,
		delta.Op{Insert: "\n"},
		delta.Op{Insert: map[string]any{"image": "https://example.com/x.png"}},
		delta.Op{Insert: "\n"},
	)
	want := `<p><br/></p><p><img src="https://example.com/x.png"/></p>`
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_RejectsNonDocument(t *testing.T) {
	if _, err := NewHTML().Render(delta.New(delta.Op{Retain: 3})); err == nil {
		t.Error("Render() of a retain op should fail")
	}
	if _, err := NewHTML().Render(nil); err == nil {
		t.Error("Render(nil) should fail")
	}
}
