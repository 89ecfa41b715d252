package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/service"
	"github.com/fleveque/tongue-service/internal/storage"
)

// AnalysisReader is the read side of service.AnalysisService.
type AnalysisReader interface {
	Get(ctx context.Context, id string) (*model.Analysis, error)
	List(ctx context.Context, limit int) ([]model.Analysis, error)
	Photo(ctx context.Context, id string, variant model.PhotoVariant) ([]byte, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	analyses AnalysisReader
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(analyses AnalysisReader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{analyses: analyses, logger: logger}
}

// analysisView is an analysis row with its decoded record.
type analysisView struct {
	*model.Analysis
	Record model.AnalysisRecord `json:"record"`
}

func (h *AdminHandler) view(a *model.Analysis) (analysisView, error) {
	rec, err := a.Record()
	if err != nil {
		return analysisView{}, err
	}
	return analysisView{Analysis: a, Record: rec}, nil
}

// Stats returns analysis counts and provider statistics.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.analyses.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("computing stats", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// List returns the newest analyses.
// Route: GET /api/v1/admin/analyses?limit=20
func (h *AdminHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	analyses, err := h.analyses.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing analyses", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]analysisView, 0, len(analyses))
	for i := range analyses {
		v, err := h.view(&analyses[i])
		if err != nil {
			h.logger.Error("decoding analysis", zap.String("analysis_id", analyses[i].ID), zap.Error(err))
			continue
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(views),
		"analyses": views,
	})
}

// Get returns one analysis.
// Route: GET /api/v1/admin/analyses/:id
func (h *AdminHandler) Get(c *gin.Context) {
	id := c.Param("id")

	a, err := h.analyses.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		h.logger.Error("getting analysis", zap.String("analysis_id", id), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}

	v, err := h.view(a)
	if err != nil {
		h.logger.Error("decoding analysis", zap.String("analysis_id", id), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, v)
}

// Photo serves the stored upload or its thumbnail.
// Route: GET /api/v1/admin/analyses/:id/photo?variant=original|thumb
func (h *AdminHandler) Photo(c *gin.Context) {
	id := c.Param("id")

	variant := c.DefaultQuery("variant", string(model.PhotoOriginal))
	if !model.ValidPhotoVariant(variant) {
		errorJSON(c, http.StatusBadRequest, "invalid variant: must be original or thumb")
		return
	}

	data, err := h.analyses.Photo(c.Request.Context(), id, model.PhotoVariant(variant))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrPhotoNotFound) {
		errorJSON(c, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.logger.Error("reading photo", zap.String("analysis_id", id), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}

	contentType := "image/jpeg"
	if model.PhotoVariant(variant) == model.PhotoThumbnail {
		contentType = "image/png"
	}
	// Stored photos never change.
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}
