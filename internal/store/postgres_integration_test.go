package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// openTestStore connects to the database named by LEAFLET_TEST_DATABASE_URL,
// resets the public schema and applies all migrations. Skipped when the
// variable is unset.
func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("LEAFLET_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("LEAFLET_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, os.DirFS("../../db/migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

// seedProject creates a user and a project owned by that user, returning
// both ids.
func seedProject(t *testing.T, s *PostgresStore) (projectID, ownerID string) {
	t.Helper()
	ctx := context.Background()

	user, err := s.EnsureUser(ctx, "sub-integration", "it@acme.test", "Integration")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := s.InsertProject(ctx, Project{
		ID:        "prj_it",
		Name:      "Integration",
		Slug:      "integration",
		CreatedBy: user.ID,
	}); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return "prj_it", user.ID
}

func seedDocument(t *testing.T, s *PostgresStore, id, projectID, ownerID string, parentID *string, isFolder bool) Document {
	t.Helper()
	doc, err := s.InsertDocument(context.Background(), Document{
		ID:        id,
		ProjectID: projectID,
		ParentID:  parentID,
		Title:     id,
		IsFolder:  isFolder,
		CreatedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("insert document %s: %v", id, err)
	}
	return doc
}

// Concurrent saves must produce version numbers 1..N with no gaps and no
// duplicates; the row lock in SetDocumentContent serializes assignment.
func TestConcurrentContentSavesAssignGaplessVersions(t *testing.T) {
	s := openTestStore(t)
	projectID, ownerID := seedProject(t, s)
	seedDocument(t, s, "doc_busy", projectID, ownerID, nil, false)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.SetDocumentContent(context.Background(), "doc_busy", "draft", ownerID)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	versions, err := s.ListDocumentVersions(context.Background(), "doc_busy", ownerID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != writers {
		t.Fatalf("versions = %d, want %d", len(versions), writers)
	}
	numbers := make([]int, 0, len(versions))
	for _, v := range versions {
		numbers = append(numbers, v.VersionNumber)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("version numbers = %v, want 1..%d with no gaps", numbers, writers)
		}
	}
}

// Two moves that would each be legal alone but form a cycle together must
// not both commit; the advisory lock plus the in-transaction ancestor walk
// rejects whichever lands second.
func TestConcurrentMovesCannotFormCycle(t *testing.T) {
	s := openTestStore(t)
	projectID, ownerID := seedProject(t, s)
	seedDocument(t, s, "doc_a", projectID, ownerID, nil, true)
	seedDocument(t, s, "doc_b", projectID, ownerID, nil, true)

	aID, bID := "doc_a", "doc_b"
	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = s.MoveDocument(context.Background(), projectID, aID, &bID, 0, ownerID)
	}()
	go func() {
		defer wg.Done()
		results[1] = s.MoveDocument(context.Background(), projectID, bID, &aID, 0, ownerID)
	}()
	wg.Wait()

	cycles := 0
	for _, err := range results {
		switch {
		case err == nil:
		case errors.Is(err, ErrCycle):
			cycles++
		default:
			t.Fatalf("unexpected move error: %v", err)
		}
	}
	if cycles != 1 {
		t.Fatalf("cycle rejections = %d, want exactly 1 (results %v)", cycles, results)
	}

	// Walking up from either document must terminate at a root.
	for _, id := range []string{aID, bID} {
		seen := map[string]bool{}
		current := id
		for {
			if seen[current] {
				t.Fatalf("cycle in ancestor chain starting at %s", id)
			}
			seen[current] = true
			doc, err := s.GetDocument(context.Background(), current)
			if err != nil {
				t.Fatalf("get document %s: %v", current, err)
			}
			if doc.ParentID == nil {
				break
			}
			current = *doc.ParentID
		}
	}
}

// Deleting a folder removes the whole subtree and its version history in one
// transaction, leaving unrelated documents alone.
func TestDeleteDocumentTreeRemovesWholeSubtree(t *testing.T) {
	s := openTestStore(t)
	projectID, ownerID := seedProject(t, s)

	folder := seedDocument(t, s, "doc_folder", projectID, ownerID, nil, true)
	child := seedDocument(t, s, "doc_child", projectID, ownerID, &folder.ID, false)
	seedDocument(t, s, "doc_grandchild", projectID, ownerID, &child.ID, false)
	seedDocument(t, s, "doc_other", projectID, ownerID, nil, false)

	if _, err := s.SetDocumentContent(context.Background(), child.ID, "kept in history until delete", ownerID); err != nil {
		t.Fatalf("set content: %v", err)
	}

	deleted, err := s.DeleteDocumentTree(context.Background(), projectID, folder.ID, ownerID)
	if err != nil {
		t.Fatalf("delete tree: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	for _, id := range []string{"doc_folder", "doc_child", "doc_grandchild"} {
		if _, err := s.GetDocument(context.Background(), id); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("document %s still present after subtree delete (err %v)", id, err)
		}
	}
	if _, err := s.GetDocument(context.Background(), "doc_other"); err != nil {
		t.Errorf("unrelated document removed: %v", err)
	}

	var orphaned int
	if err := s.DB().QueryRowContext(context.Background(), `
		SELECT COUNT(*) FROM document_versions WHERE document_id='doc_child'
	`).Scan(&orphaned); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if orphaned != 0 {
		t.Errorf("orphaned versions = %d, want 0", orphaned)
	}
}

// A non-owner may delete their own membership row; an owner may not.
func TestDeleteMemberSelfRemoval(t *testing.T) {
	s := openTestStore(t)
	projectID, ownerID := seedProject(t, s)

	editor, err := s.EnsureUser(context.Background(), "sub-editor-it", "editor-it@acme.test", "Editor")
	if err != nil {
		t.Fatalf("ensure editor: %v", err)
	}
	if err := s.InsertMember(context.Background(), Member{ProjectID: projectID, UserID: editor.ID, Role: "editor"}, ownerID); err != nil {
		t.Fatalf("insert member: %v", err)
	}

	if _, err := s.DeleteMember(context.Background(), projectID, ownerID, ownerID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("owner self-removal err = %v, want ErrNotAuthorized", err)
	}

	removed, err := s.DeleteMember(context.Background(), projectID, editor.ID, editor.ID)
	if err != nil {
		t.Fatalf("editor self-removal: %v", err)
	}
	if !removed {
		t.Fatal("editor self-removal removed nothing")
	}
}
