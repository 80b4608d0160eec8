package markdown

import (
	"strings"
	"testing"
)

func TestRenderHeadingsAndEmphasis(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("# Title\n\nSome *emphasis* and `code`.")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"<h1", "Title</h1>", "<em>emphasis</em>", "<code>code</code>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderListsAndLinks(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("- one\n- two\n\n[docs](https://example.com)")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"<ul>", "<li>one</li>", `<a href="https://example.com">docs</a>`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDoesNotPassThroughRawHTML(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("before <script>alert(1)</script> after")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw HTML leaked into output:\n%s", out)
	}
}

func TestRenderEscapesAngleBracketsInText(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("x < y && y > z")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "< y &&") {
		t.Fatalf("unescaped HTML-significant characters in output:\n%s", out)
	}
}
