package bookapi

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	cacheEnvVar   = "CHAPTERDESK_CACHE_DIR"
	cacheSubdir   = "chapterdesk/chapters"
	bodySuffix    = ".json"
	metaSuffix    = ".meta"
	partialSuffix = ".part"
)

// chapterCache keeps the last chapter document seen per id together with its
// ETag so reloads can be conditional.
type chapterCache struct {
	dir string
}

type chapterCacheMeta struct {
	ChapterID string    `json:"chapterId"`
	ETag      string    `json:"etag"`
	CachedAt  time.Time `json:"cachedAt"`
	Size      int64     `json:"size"`
}

// newChapterCache resolves the cache directory: explicit dir, then the env
// override, then the user cache dir.
func newChapterCache(dir string) (*chapterCache, error) {
	if dir == "" {
		dir = os.Getenv(cacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "chapterdesk-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &chapterCache{dir: dir}, nil
}

func (c *chapterCache) load(chapterID string) ([]byte, chapterCacheMeta, error) {
	bodyPath, metaPath, _ := c.pathsFor(cacheKey(chapterID))
	meta, err := readMeta(metaPath)
	if err != nil {
		return nil, chapterCacheMeta{}, err
	}
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, chapterCacheMeta{}, err
	}
	if meta.Size > 0 && int64(len(body)) != meta.Size {
		return nil, chapterCacheMeta{}, errors.New("cached chapter truncated")
	}
	return body, meta, nil
}

// store writes body through a partial file and renames it into place so a
// crash never leaves a half-written document.
func (c *chapterCache) store(chapterID, etag string, body []byte) error {
	bodyPath, metaPath, partialPath := c.pathsFor(cacheKey(chapterID))
	if err := os.WriteFile(partialPath, body, 0o644); err != nil {
		return err
	}
	if err := os.Rename(partialPath, bodyPath); err != nil {
		return err
	}
	return writeMeta(metaPath, chapterCacheMeta{
		ChapterID: chapterID,
		ETag:      etag,
		CachedAt:  time.Now().UTC(),
		Size:      int64(len(body)),
	})
}

func (c *chapterCache) touch(chapterID string, meta chapterCacheMeta) error {
	_, metaPath, _ := c.pathsFor(cacheKey(chapterID))
	meta.CachedAt = time.Now().UTC()
	return writeMeta(metaPath, meta)
}

func (c *chapterCache) evict(chapterID string) {
	bodyPath, metaPath, partialPath := c.pathsFor(cacheKey(chapterID))
	_ = os.Remove(bodyPath)
	_ = os.Remove(metaPath)
	_ = os.Remove(partialPath)
}

func (c *chapterCache) pathsFor(key string) (string, string, string) {
	return filepath.Join(c.dir, key+bodySuffix), filepath.Join(c.dir, key+metaSuffix), filepath.Join(c.dir, key+partialSuffix)
}

func cacheKey(chapterID string) string {
	if key := sanitizeKey(chapterID); key != "" && len(key) <= 64 {
		return key
	}
	sum := sha1.Sum([]byte(chapterID))
	return hex.EncodeToString(sum[:])
}

func sanitizeKey(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "/", "-")
	value = strings.ReplaceAll(value, "\\", "-")
	value = strings.ReplaceAll(value, ":", "-")
	value = strings.ReplaceAll(value, "..", "-")
	return value
}

func readMeta(path string) (chapterCacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chapterCacheMeta{}, err
	}
	var meta chapterCacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return chapterCacheMeta{}, err
	}
	return meta, nil
}

func writeMeta(path string, meta chapterCacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
