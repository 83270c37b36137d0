package tracker

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler is the thin HTTP wrapper around the Service. It only translates
// requests and error kinds; every decision lives in the service.
type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sources", h.sources)
	rg.GET("/search", h.search)
	rg.POST("/imports", h.importManga)
	rg.GET("/manga", h.list)
	rg.GET("/manga/:id", h.getWithChapters)
	rg.POST("/manga/:id/update", h.update)
	rg.POST("/sources/:source/sync", h.sync)
}

func (h *Handler) sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.Service.SourceNames()})
}

func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	if src := c.Query("source"); src != "" {
		results, err := h.Service.Search(c.Request.Context(), src, query)
		if err != nil {
			h.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": gin.H{src: results}})
		return
	}

	results := h.Service.SearchAll(c.Request.Context(), query)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type importRequest struct {
	Source   string `json:"source" binding:"required"`
	SourceID string `json:"source_id" binding:"required"`
}

func (h *Handler) importManga(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and source_id are required"})
		return
	}

	m, err := h.Service.ImportManga(c.Request.Context(), req.Source, req.SourceID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) list(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("skip"), 0)

	items, err := h.Service.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"limit": limit,
		"skip":  offset,
		"items": items,
	})
}

func (h *Handler) getWithChapters(c *gin.Context) {
	m, chapters, err := h.Service.GetWithChapters(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"manga": m, "chapters": chapters})
}

func (h *Handler) update(c *gin.Context) {
	m, err := h.Service.UpdateManga(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) sync(c *gin.Context) {
	res, err := h.Service.SyncRecentUpdates(c.Request.Context(), c.Param("source"), parseInt(c.Query("limit"), 20))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
