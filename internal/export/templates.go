package export

import (
	"bytes"
	"html/template"
)

var documentTemplate = template.Must(template.New("document").Parse(printTemplate))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	ProjectName string
	ContentHTML template.HTML
}

// RenderDocumentHTML renders the printable document page.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const printTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  @page { size: letter; margin: 0.75in; }
  body { font-family: Georgia, 'Times New Roman', serif; color: #1f2430; line-height: 1.6; }
  header { border-bottom: 2px solid #1f2430; padding-bottom: 0.5rem; margin-bottom: 1.5rem; }
  header .project { font-size: 0.85rem; text-transform: uppercase; letter-spacing: 0.08em; color: #666; }
  h1 { font-size: 1.8rem; margin: 0.25rem 0 0; }
  pre { background: #f4f4f2; padding: 0.75rem; overflow-x: auto; font-size: 0.85rem; }
  code { font-family: 'SF Mono', Menlo, monospace; }
  blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
  table { border-collapse: collapse; }
  th, td { border: 1px solid #ccc; padding: 0.35rem 0.6rem; }
  img { max-width: 100%; }
</style>
</head>
<body>
<header>
  <div class="project">{{.ProjectName}}</div>
  <h1>{{.Title}}</h1>
</header>
<main>{{.ContentHTML}}</main>
</body>
</html>
`
