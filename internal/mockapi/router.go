package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
)

const requestIDHeader = "X-Request-ID"

type insertBody struct {
	Type     blocks.Type           `json:"type" binding:"required,oneof=paragraph dialogue scene_boundary metadata"`
	Position blocks.InsertPosition `json:"position"`
}

type updateBody struct {
	Patch blocks.Patch `json:"patch" binding:"required"`
}

type convertBody struct {
	Text string `json:"text" binding:"required"`
}

type applyBody struct {
	Blocks   blocks.List           `json:"blocks" binding:"required,min=1"`
	Position blocks.InsertPosition `json:"position"`
}

type server struct {
	store *Store
	hub   *Hub
	log   *zap.Logger
}

// NewRouter wires the REST and websocket endpoints over store. Store changes
// are broadcast through hub.
func NewRouter(store *Store, hub *Hub, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	store.OnChange = hub.Broadcast

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(logger.Named("http")))

	s := &server{store: store, hub: hub, log: logger}
	api := r.Group("/api")
	{
		api.GET("/books", s.listBooks)
		api.GET("/books/:id/chapters", s.listChapters)
		api.GET("/chapters/:id", s.getChapter)
		api.POST("/chapters/:id/blocks", s.insertBlock)
		api.POST("/chapters/:id/convert", s.convert)
		api.POST("/chapters/:id/apply", s.apply)
		api.PATCH("/blocks/:id", s.updateBlock)
		api.DELETE("/blocks/:id", s.deleteBlock)
	}
	r.GET("/ws/chapters/:id", s.watch)
	r.NoRoute(func(c *gin.Context) {
		fail(c, &bookapi.APIError{Status: http.StatusNotFound, Code: bookapi.CodeNotFound, Message: "no route " + c.Request.URL.Path})
	})
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("requestID", id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", c.GetString("requestID")),
		)
	}
}

func fail(c *gin.Context, err error) {
	var apiErr *bookapi.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &bookapi.APIError{Status: http.StatusInternalServerError, Code: bookapi.CodeInternal, Message: err.Error()}
	}
	c.AbortWithStatusJSON(apiErr.Status, bookapi.ErrorEnvelope{Error: bookapi.ErrorBody{Code: apiErr.Code, Message: apiErr.Message}})
}

func badBody(c *gin.Context, err error) {
	fail(c, &bookapi.APIError{Status: http.StatusBadRequest, Code: bookapi.CodeInvalid, Message: err.Error()})
}

func listQuery(c *gin.Context) bookapi.ListQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return bookapi.ListQuery{Query: c.Query("q"), Page: page, PerPage: perPage}
}

func (s *server) listBooks(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListBooks(listQuery(c)))
}

func (s *server) listChapters(c *gin.Context) {
	page, err := s.store.ListChapters(c.Param("id"), listQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *server) getChapter(c *gin.Context) {
	detail, etag, err := s.store.Chapter(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *server) insertBlock(c *gin.Context) {
	var body insertBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	b, err := s.store.InsertBlock(c.Param("id"), body.Type, body.Position)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"block": b})
}

func (s *server) updateBlock(c *gin.Context) {
	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	b, err := s.store.UpdateBlock(c.Param("id"), body.Patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": b})
}

func (s *server) deleteBlock(c *gin.Context) {
	if err := s.store.DeleteBlock(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) convert(c *gin.Context) {
	var body convertBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	items, err := s.store.Convert(c.Param("id"), body.Text)
	if err != nil {
		fail(c, err)
		return
	}
	s.log.Debug("converted text", zap.String("chapter", c.Param("id")), zap.Int("blocks", len(items)))
	c.JSON(http.StatusOK, bookapi.ConvertResponse{Blocks: items})
}

func (s *server) apply(c *gin.Context) {
	var body applyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	if err := s.store.Apply(c.Param("id"), body.Blocks, body.Position); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) watch(c *gin.Context) {
	chapterID := strings.TrimSpace(c.Param("id"))
	if _, _, err := s.store.Chapter(chapterID); err != nil {
		fail(c, err)
		return
	}
	s.hub.serve(c, chapterID)
}
