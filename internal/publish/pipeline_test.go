package publish

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"leaflet/api/internal/markdown"
	"leaflet/api/internal/store"
)

type fakeObjects struct {
	key  string
	data []byte
	err  error
}

func (f *fakeObjects) PutBundle(_ context.Context, key string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key = key
	f.data = data
	return "http://preview.local/" + key, nil
}

func testPipeline(objects ObjectStore) *Pipeline {
	p := NewPipeline(markdown.NewRenderer(), objects)
	p.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	return p
}

func TestRunBuildsBundle(t *testing.T) {
	objects := &fakeObjects{}
	p := testPipeline(objects)

	result, err := p.Run(context.Background(), Input{
		ProjectID:   "prj_1",
		ProjectName: "Handbook",
		Documents: []store.Document{
			{ID: "doc_1", Title: "Intro", Content: "# Welcome"},
			{ID: "doc_2", Title: "Getting Started!!", Content: "Run the thing."},
			{ID: "doc_3", Title: "FAQ", Content: "**Answers**"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.DocumentCount != 3 {
		t.Fatalf("document count = %d, want 3", result.DocumentCount)
	}
	wantSlugs := []string{"intro", "getting-started", "faq"}
	for i, want := range wantSlugs {
		if result.Documents[i].Slug != want {
			t.Errorf("slug[%d] = %q, want %q", i, result.Documents[i].Slug, want)
		}
	}
	if !strings.HasPrefix(result.Version, "20250314-092653-") {
		t.Errorf("version = %q, want timestamp prefix", result.Version)
	}
	if result.StoragePath != "projects/prj_1/"+result.Version+".zip" {
		t.Errorf("storage path = %q", result.StoragePath)
	}
	if result.PreviewURL != "http://preview.local/"+result.StoragePath {
		t.Errorf("preview url = %q", result.PreviewURL)
	}

	entries := readArchive(t, objects.data)
	for _, name := range []string{"index.html", "intro.html", "getting-started.html", "faq.html", "style.css"} {
		if _, ok := entries[name]; !ok {
			t.Errorf("bundle missing %s", name)
		}
	}
	if entries["index.html"] != entries["intro.html"] {
		t.Error("index.html should mirror the first document's page")
	}
	if !strings.Contains(entries["intro.html"], "<h1") {
		t.Error("intro page missing rendered heading")
	}
	if !strings.Contains(entries["faq.html"], `href="getting-started.html"`) {
		t.Error("nav link to sibling page missing")
	}
}

func TestRunEmptySelection(t *testing.T) {
	p := testPipeline(&fakeObjects{})

	_, err := p.Run(context.Background(), Input{ProjectID: "prj_1", ProjectName: "Empty"})
	if !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("err = %v, want ErrNothingToPublish", err)
	}
}

func TestRunUploadFailure(t *testing.T) {
	p := testPipeline(&fakeObjects{err: errors.New("connection refused")})

	_, err := p.Run(context.Background(), Input{
		ProjectID:   "prj_1",
		ProjectName: "Handbook",
		Documents:   []store.Document{{ID: "doc_1", Title: "Intro", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "upload bundle") {
		t.Fatalf("err = %v, want upload failure", err)
	}
}

func TestRunSlugCollision(t *testing.T) {
	objects := &fakeObjects{}
	p := testPipeline(objects)

	result, err := p.Run(context.Background(), Input{
		ProjectID:   "prj_1",
		ProjectName: "Handbook",
		Documents: []store.Document{
			{ID: "doc_1", Title: "Notes", Content: "a"},
			{ID: "doc_2", Title: "Notes", Content: "b"},
			{ID: "doc_3", Title: "???", Content: "c"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Documents[0].Slug != "notes" || result.Documents[1].Slug != "notes-2" {
		t.Errorf("colliding slugs = %q, %q", result.Documents[0].Slug, result.Documents[1].Slug)
	}
	if result.Documents[2].Slug != "document-3" {
		t.Errorf("fallback slug = %q, want document-3", result.Documents[2].Slug)
	}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", file.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", file.Name, err)
		}
		entries[file.Name] = string(body)
	}
	return entries
}
