package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"leaflet/api/internal/store"
)

func setupTestCache(t *testing.T) (*PublishCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewPublishCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create publish cache: %v", err)
	}
	return c, s
}

func TestNewPublishCache(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	c, err := NewPublishCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewPublishCache failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSetAndGetLatest(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	publish := store.Publish{
		ID:            "pub_1",
		ProjectID:     "prj_1",
		Version:       "20250314-092653-ab12cd34",
		StoragePath:   "projects/prj_1/20250314-092653-ab12cd34.zip",
		DocumentCount: 3,
	}

	if err := c.SetLatest(ctx, "prj_1", publish); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	got, err := c.GetLatest(ctx, "prj_1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if got.Version != publish.Version {
		t.Errorf("expected version %s, got %s", publish.Version, got.Version)
	}
	if got.DocumentCount != 3 {
		t.Errorf("expected document count 3, got %d", got.DocumentCount)
	}
}

func TestGetLatestMiss(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	_, err := c.GetLatest(context.Background(), "prj_missing")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestGetLatestExpired(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetLatest(ctx, "prj_1", store.Publish{ID: "pub_1", Version: "v1"}); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	s.FastForward(7 * time.Hour)

	_, err := c.GetLatest(ctx, "prj_1")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetLatest(ctx, "prj_1", store.Publish{ID: "pub_1", Version: "v1"}); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	if err := c.Invalidate(ctx, "prj_1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	_, err := c.GetLatest(ctx, "prj_1")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after invalidate, got %v", err)
	}
}

func TestProjectIsolation(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetLatest(ctx, "prj_1", store.Publish{ID: "pub_1", Version: "v1"}); err != nil {
		t.Fatalf("SetLatest prj_1 failed: %v", err)
	}
	if err := c.SetLatest(ctx, "prj_2", store.Publish{ID: "pub_2", Version: "v2"}); err != nil {
		t.Fatalf("SetLatest prj_2 failed: %v", err)
	}

	if err := c.Invalidate(ctx, "prj_1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, err := c.GetLatest(ctx, "prj_2")
	if err != nil {
		t.Fatalf("GetLatest prj_2 failed: %v", err)
	}
	if got.Version != "v2" {
		t.Errorf("expected v2, got %s", got.Version)
	}
}
