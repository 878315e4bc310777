package bookapi

import (
	"os"
	"strings"
	"testing"
)

func TestChapterCacheStoreAndLoad(t *testing.T) {
	t.Setenv(cacheEnvVar, t.TempDir())
	cache, err := newChapterCache("")
	if err != nil {
		t.Fatalf("newChapterCache: %v", err)
	}
	if err := cache.store("c/1", `"v3"`, []byte(`{"id":"c/1"}`)); err != nil {
		t.Fatalf("store: %v", err)
	}
	body, meta, err := cache.load("c/1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(body) != `{"id":"c/1"}` || meta.ETag != `"v3"` {
		t.Fatalf("unexpected cache entry: %s %+v", body, meta)
	}
	bodyPath, _, partialPath := cache.pathsFor(cacheKey("c/1"))
	if strings.Contains(bodyPath[len(cache.dir):], "c/1") {
		t.Fatalf("key not sanitized: %s", bodyPath)
	}
	if _, err := os.Stat(partialPath); !os.IsNotExist(err) {
		t.Fatalf("partial file should be renamed away")
	}
}

func TestChapterCacheDetectsTruncation(t *testing.T) {
	cache, err := newChapterCache(t.TempDir())
	if err != nil {
		t.Fatalf("newChapterCache: %v", err)
	}
	if err := cache.store("c1", `"v1"`, []byte(`{"id":"c1","title":"Long"}`)); err != nil {
		t.Fatalf("store: %v", err)
	}
	bodyPath, _, _ := cache.pathsFor(cacheKey("c1"))
	if err := os.WriteFile(bodyPath, []byte(`{"id"`), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, _, err := cache.load("c1"); err == nil {
		t.Fatalf("expected truncation error")
	}
	cache.evict("c1")
	if _, err := os.Stat(bodyPath); !os.IsNotExist(err) {
		t.Fatalf("evict should remove the body")
	}
}

func TestCacheKeyHashesLongIDs(t *testing.T) {
	long := strings.Repeat("x", 80)
	if key := cacheKey(long); len(key) != 40 {
		t.Fatalf("expected sha1 hex key, got %q", key)
	}
}
