package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"ragcore/internal/assembler"
	"ragcore/internal/domain"
	"ragcore/internal/service"
)

// Retriever is the HTTP-facing subset of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string) service.Result
	Rebuild(ctx context.Context) error
	Stats() service.Stats
	Sections() []string
	Section(name string) (string, bool)
	Ready() bool
}

type Handler struct {
	engine Retriever
	log    logr.Logger
}

func NewHandler(engine Retriever, log logr.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// NewRouter registers the API routes on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog)

	r.GET("/healthz", h.Health)
	v1 := r.Group("/v1")
	v1.POST("/retrieve", h.Retrieve)
	v1.GET("/stats", h.Stats)
	v1.GET("/sections", h.Sections)
	v1.GET("/sections/:name", h.Section)
	v1.POST("/index/rebuild", h.Rebuild)
	return r
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.V(1).Info("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed", time.Since(start))
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	if !h.engine.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type retrieveRequest struct {
	Query string `json:"query" binding:"required"`
}

type retrieveResponse struct {
	RequestID    string               `json:"request_id"`
	Context      string               `json:"context"`
	Strategy     domain.Strategy      `json:"strategy"`
	Attributions []domain.Attribution `json:"attributions"`
	Sources      string               `json:"sources,omitempty"`
	ElapsedMS    int64                `json:"elapsed_ms"`
}

// Retrieve handles POST /v1/retrieve
func (h *Handler) Retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query must not be empty"})
		return
	}

	res := h.engine.Retrieve(c.Request.Context(), query)
	attributions := res.Context.Attributions
	if attributions == nil {
		attributions = []domain.Attribution{}
	}
	c.JSON(http.StatusOK, retrieveResponse{
		RequestID:    res.RequestID,
		Context:      res.Context.Text,
		Strategy:     res.Retrieval.Strategy,
		Attributions: attributions,
		Sources:      assembler.AttributionText(attributions),
		ElapsedMS:    res.Elapsed.Milliseconds(),
	})
}

// Stats handles GET /v1/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// Sections handles GET /v1/sections
func (h *Handler) Sections(c *gin.Context) {
	sections := h.engine.Sections()
	if sections == nil {
		sections = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": sections})
}

// Section handles GET /v1/sections/:name
func (h *Handler) Section(c *gin.Context) {
	name := c.Param("name")
	text, ok := h.engine.Section(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "text": text})
}

// Rebuild handles POST /v1/index/rebuild
func (h *Handler) Rebuild(c *gin.Context) {
	err := h.engine.Rebuild(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.engine.Stats())
	case errors.Is(err, domain.ErrEngineClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyDocument):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmbeddingFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": h.engine.Stats()})
	default:
		h.log.Error(err, "rebuild failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
