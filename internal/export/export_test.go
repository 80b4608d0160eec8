package export

import (
	"strings"
	"testing"

	"leaflet/api/internal/markdown"
)

func TestExportFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Getting Started", "Getting-Started"},
		{"special characters stripped", "FAQ: what's new?", "FAQ-whats-new"},
		{"empty falls back", "", "document"},
		{"only symbols falls back", "???", "document"},
		{"long title truncated", strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exportFilename(tt.input)
			if got != tt.expected {
				t.Errorf("exportFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHTMLDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"space as percent twenty", "a b", "data:text/html;charset=utf-8,a%20b"},
		{"angle brackets encoded", "<p>", "data:text/html;charset=utf-8,%3Cp%3E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := htmlDataURL(tt.input)
			if got != tt.expected {
				t.Errorf("htmlDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       "Release Notes",
		ProjectName: "Handbook",
		ContentHTML: "<p>All good.</p>",
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML failed: %v", err)
	}
	if !strings.Contains(html, "<h1>Release Notes</h1>") {
		t.Error("expected title heading in output")
	}
	if !strings.Contains(html, "Handbook") {
		t.Error("expected project name in output")
	}
	if !strings.Contains(html, "<p>All good.</p>") {
		t.Error("expected content HTML to pass through unescaped")
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(markdown.NewRenderer())

	result, err := svc.Export(Request{
		DocumentTitle: "Intro",
		ProjectName:   "Handbook",
		Content:       "# Welcome\n\nHello.",
		Format:        FormatHTML,
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "Intro.html" {
		t.Errorf("filename = %q, want Intro.html", result.Filename)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime type = %q", result.MimeType)
	}
	if !strings.Contains(string(result.Data), "Welcome") {
		t.Error("expected rendered heading text in output")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(markdown.NewRenderer())

	_, err := svc.Export(Request{DocumentTitle: "Intro", Format: Format("docx")})
	if err == nil || !strings.Contains(err.Error(), "unsupported export format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
