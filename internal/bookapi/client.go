// Package bookapi is the HTTP client for the book backend.
package bookapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/blocks"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	requestIDHeader    = "X-Request-ID"
)

// Config describes how to reach the backend.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CacheDir   string
	NoCache    bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the REST API. It is safe for concurrent use.
type Client struct {
	base  *url.URL
	http  *http.Client
	cache *chapterCache
	log   *zap.Logger
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("bookapi: base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bookapi: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("bookapi: unsupported scheme %q", base.Scheme)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{base: base, http: httpClient, log: logger.Named("api")}
	if !cfg.NoCache {
		cache, err := newChapterCache(cfg.CacheDir)
		if err != nil {
			logger.Warn("Chapter cache disabled", zap.Error(err))
		} else {
			c.cache = cache
		}
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) ListBooks(ctx context.Context, q ListQuery) (Page[Book], error) {
	var page Page[Book]
	err := c.doJSON(ctx, http.MethodGet, "/api/books", listValues(q), nil, &page)
	return page, err
}

func (c *Client) ListChapters(ctx context.Context, bookID string, q ListQuery) (Page[ChapterSummary], error) {
	var page Page[ChapterSummary]
	path := "/api/books/" + url.PathEscape(bookID) + "/chapters"
	err := c.doJSON(ctx, http.MethodGet, path, listValues(q), nil, &page)
	return page, err
}

// GetChapter fetches a chapter, revalidating any cached copy with its ETag.
func (c *Client) GetChapter(ctx context.Context, chapterID string) (blocks.ChapterDetail, error) {
	body, err := c.fetchChapter(ctx, chapterID, true)
	if err != nil {
		return blocks.ChapterDetail{}, err
	}
	var detail blocks.ChapterDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		if c.cache != nil {
			c.cache.evict(chapterID)
		}
		return blocks.ChapterDetail{}, fmt.Errorf("decode chapter %s: %w", chapterID, err)
	}
	return detail, nil
}

func (c *Client) fetchChapter(ctx context.Context, chapterID string, conditional bool) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chapters/"+url.PathEscape(chapterID), nil, nil)
	if err != nil {
		return nil, err
	}
	var (
		cached []byte
		meta   chapterCacheMeta
	)
	if conditional && c.cache != nil {
		if body, m, err := c.cache.load(chapterID); err == nil && m.ETag != "" {
			cached, meta = body, m
			req.Header.Set("If-None-Match", m.ETag)
		}
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cached) > 0 {
			_ = c.cache.touch(chapterID, meta)
			return cached, nil
		}
		return c.fetchChapter(ctx, chapterID, false)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if etag := resp.Header.Get("Etag"); etag != "" {
				if err := c.cache.store(chapterID, etag, body); err != nil {
					c.log.Debug("Unable to cache chapter", zap.String("chapter", chapterID), zap.Error(err))
				}
			}
		}
		return body, nil
	default:
		if resp.StatusCode == http.StatusNotFound && c.cache != nil {
			c.cache.evict(chapterID)
		}
		return nil, decodeAPIError(resp)
	}
}

func (c *Client) InsertBlock(ctx context.Context, chapterID string, blockType blocks.Type, pos blocks.InsertPosition) (blocks.Block, error) {
	var out BlockResponse
	path := "/api/chapters/" + url.PathEscape(chapterID) + "/blocks"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, InsertRequest{Type: blockType, Position: pos}, &out); err != nil {
		return nil, err
	}
	return blocks.Decode(out.Block), nil
}

func (c *Client) UpdateBlock(ctx context.Context, blockID string, patch blocks.Patch) (blocks.Block, error) {
	var out BlockResponse
	path := "/api/blocks/" + url.PathEscape(blockID)
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, UpdateRequest{Patch: patch}, &out); err != nil {
		return nil, err
	}
	return blocks.Decode(out.Block), nil
}

func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/blocks/"+url.PathEscape(blockID), nil, nil, nil)
}

func (c *Client) ConvertText(ctx context.Context, chapterID, text string) ([]blocks.Block, error) {
	var out ConvertResponse
	path := "/api/chapters/" + url.PathEscape(chapterID) + "/convert"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, ConvertRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}

func (c *Client) ApplyConversion(ctx context.Context, chapterID string, items []blocks.Block, pos blocks.InsertPosition) error {
	path := "/api/chapters/" + url.PathEscape(chapterID) + "/apply"
	return c.doJSON(ctx, http.MethodPost, path, nil, ApplyRequest{Blocks: blocks.List(items), Position: pos}, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := c.http.Do(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get(requestIDHeader)),
		zap.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		c.log.Debug("Request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	c.log.Debug("Request done", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

func listValues(q ListQuery) url.Values {
	values := url.Values{}
	if query := strings.TrimSpace(q.Query); query != "" {
		values.Set("q", query)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return values
}
