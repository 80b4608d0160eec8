package publish

import (
	"bytes"
	"fmt"
	"html/template"
)

// NavItem is one entry of the shared navigation listing.
type NavItem struct {
	Title string
	Slug  string
}

type pageData struct {
	SiteName    string
	Title       string
	Slug        string
	Nav         []NavItem
	ContentHTML template.HTML
	Version     string
}

var pageTemplate = template.Must(template.New("page").Parse(sitePageTemplate))

func renderPage(data pageData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render page %s: %w", data.Slug, err)
	}
	return buf.String(), nil
}

const sitePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta name="generator" content="leaflet {{.Version}}">
  <title>{{.Title}} · {{.SiteName}}</title>
  <link rel="stylesheet" href="style.css">
</head>
<body>
  <nav class="site-nav">
    <div class="site-name">{{.SiteName}}</div>
    <ul>
    {{- range .Nav}}
      <li{{if eq .Slug $.Slug}} class="active"{{end}}><a href="{{.Slug}}.html">{{.Title}}</a></li>
    {{- end}}
    </ul>
  </nav>
  <main>
    <article>{{.ContentHTML}}</article>
  </main>
</body>
</html>`

const siteStylesheet = `:root { --ink: #1f2430; --paper: #fcfcfa; --accent: #2b6cb0; }
* { box-sizing: border-box; }
body { margin: 0; display: flex; min-height: 100vh; color: var(--ink); background: var(--paper);
  font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.65; }
.site-nav { width: 240px; padding: 1.5rem 1rem; border-right: 1px solid #e2e2df; }
.site-nav .site-name { font-weight: 700; margin-bottom: 1rem; }
.site-nav ul { list-style: none; margin: 0; padding: 0; }
.site-nav li { margin: 0.25rem 0; }
.site-nav a { color: var(--ink); text-decoration: none; }
.site-nav li.active a { color: var(--accent); font-weight: 600; }
main { flex: 1; padding: 2rem 3rem; max-width: 760px; }
article h1, article h2 { line-height: 1.25; }
article pre { background: #f1f1ee; padding: 0.75rem 1rem; overflow-x: auto; border-radius: 4px; }
article code { font-family: "SF Mono", Menlo, monospace; font-size: 0.92em; }
article blockquote { margin: 0; padding-left: 1rem; border-left: 3px solid #d4d4d0; color: #555; }
article img { max-width: 100%; }
`
