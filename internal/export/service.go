package export

import (
	"fmt"
	"html/template"

	"leaflet/api/internal/markdown"
)

// Service renders documents for download. The markdown renderer is shared
// with the publish pipeline so exported output matches the published site.
type Service struct {
	renderer *markdown.Renderer
}

func NewService(renderer *markdown.Renderer) *Service {
	return &Service{renderer: renderer}
}

// Export generates an export in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	contentHTML, err := s.renderer.Render(req.Content)
	if err != nil {
		return nil, fmt.Errorf("render content: %w", err)
	}

	html, err := RenderDocumentHTML(TemplateData{
		Title:       req.DocumentTitle,
		ProjectName: req.ProjectName,
		ContentHTML: template.HTML(contentHTML),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return renderPDF(html, req.DocumentTitle)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: exportFilename(req.DocumentTitle) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
