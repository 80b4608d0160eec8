// Package publish transforms a project's published documents into a static
// site bundle and records the result. The document snapshot is read once by
// the caller and handed in; the pipeline never re-fetches mid-run.
package publish

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"leaflet/api/internal/markdown"
	"leaflet/api/internal/store"
)

// ErrNothingToPublish is returned when the snapshot selection is empty. It is
// a reported user error, not a pipeline failure.
var ErrNothingToPublish = errors.New("no published documents")

// ObjectStore is the slice of the blob store the pipeline needs.
type ObjectStore interface {
	PutBundle(ctx context.Context, key string, data []byte) (string, error)
}

// Input is the frozen snapshot for one publish run.
type Input struct {
	ProjectID   string
	ProjectName string
	// Documents must be non-folder, published, and in sibling order. The
	// first entry becomes the site index.
	Documents []store.Document
}

// Result describes a completed run. No Result exists unless every step,
// including the upload, succeeded.
type Result struct {
	Version       string
	StoragePath   string
	PreviewURL    string
	DocumentCount int
	Documents     []store.PublishedDocument
}

type Pipeline struct {
	renderer *markdown.Renderer
	objects  ObjectStore
	now      func() time.Time

	// UploadTimeout caps the bundle upload. Zero means the caller's context
	// deadline alone applies.
	UploadTimeout time.Duration
}

func NewPipeline(renderer *markdown.Renderer, objects ObjectStore) *Pipeline {
	return &Pipeline{
		renderer: renderer,
		objects:  objects,
		now:      time.Now,
	}
}

// Run renders, assembles, and uploads the bundle. On any failure the caller
// gets an error and nothing has been recorded; a partially uploaded object is
// never referenced by any Publish row.
func (p *Pipeline) Run(ctx context.Context, in Input) (Result, error) {
	if len(in.Documents) == 0 {
		return Result{}, ErrNothingToPublish
	}

	titles := make([]string, len(in.Documents))
	for i, doc := range in.Documents {
		titles[i] = doc.Title
	}
	slugs := assignSlugs(titles)

	nav := make([]NavItem, len(in.Documents))
	published := make([]store.PublishedDocument, len(in.Documents))
	for i, doc := range in.Documents {
		nav[i] = NavItem{Title: doc.Title, Slug: slugs[i]}
		published[i] = store.PublishedDocument{ID: doc.ID, Title: doc.Title, Slug: slugs[i]}
	}

	version := p.versionToken()

	files := make([]bundleFile, 0, len(in.Documents)+2)
	for i, doc := range in.Documents {
		contentHTML, err := p.renderer.Render(doc.Content)
		if err != nil {
			return Result{}, fmt.Errorf("render document %s: %w", doc.ID, err)
		}
		page, err := renderPage(pageData{
			SiteName:    in.ProjectName,
			Title:       doc.Title,
			Slug:        slugs[i],
			Nav:         nav,
			ContentHTML: template.HTML(contentHTML),
			Version:     version,
		})
		if err != nil {
			return Result{}, err
		}
		files = append(files, bundleFile{Name: slugs[i] + ".html", Body: page})
		// The first document by sort order doubles as the site entry point.
		if i == 0 {
			files = append(files, bundleFile{Name: "index.html", Body: page})
		}
	}
	files = append(files, bundleFile{Name: "style.css", Body: siteStylesheet})

	archive, err := buildArchive(files)
	if err != nil {
		return Result{}, err
	}

	storagePath := fmt.Sprintf("projects/%s/%s.zip", in.ProjectID, version)
	uploadCtx := ctx
	if p.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, p.UploadTimeout)
		defer cancel()
	}
	previewURL, err := p.objects.PutBundle(uploadCtx, storagePath, archive)
	if err != nil {
		return Result{}, fmt.Errorf("upload bundle: %w", err)
	}

	return Result{
		Version:       version,
		StoragePath:   storagePath,
		PreviewURL:    previewURL,
		DocumentCount: len(in.Documents),
		Documents:     published,
	}, nil
}

// versionToken is unique and monotonically informative: a UTC timestamp
// prefix keeps tokens sortable by publish time, the uuid fragment breaks
// same-second collisions.
func (p *Pipeline) versionToken() string {
	return p.now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}
