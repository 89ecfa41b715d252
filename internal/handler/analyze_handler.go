package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/middleware"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/service"
)

// MaxPhotoBytes caps a decoded upload.
const MaxPhotoBytes = 15 << 20

// Analyzer is the part of service.AnalysisService the handler uses.
type Analyzer interface {
	Analyze(ctx context.Context, requestID string, photo []byte) (*model.Analysis, error)
}

// AnalyzeHandler serves the tongue analysis endpoint.
type AnalyzeHandler struct {
	analyzer Analyzer
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(analyzer Analyzer, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, logger: logger}
}

type analyzeRequest struct {
	ImageData string `json:"imageData"`
}

// Analyze runs a photo through the pipeline.
// Route: POST /api/v1/analyze-tongue
//
// The body is {"imageData": "<base64>"}; a multipart form with a "photo"
// file is accepted too. Responses use the envelope the analysis client
// expects: {"success": true, "result": {...}} or {"success": false, "error": "..."}.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	requestID := c.GetString(middleware.RequestIDContextKey)
	log := h.logger.With(zap.String("request_id", requestID))

	photo, err := readPhoto(c)
	if err != nil {
		log.Info("rejected upload", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.analyzer.Analyze(c.Request.Context(), requestID, photo)
	if err != nil {
		status, msg := analyzeErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("analysis failed", zap.Error(err))
		} else {
			log.Warn("analysis failed", zap.Int("status", status), zap.Error(err))
		}
		errorJSON(c, status, msg)
		return
	}

	rec, err := a.Record()
	if err != nil {
		log.Error("decoding stored record", zap.String("analysis_id", a.ID), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"analysisId": a.ID,
		"result":     rec,
	})
}

// analyzeErrorStatus maps service errors onto the statuses the analysis
// client understands (429 rate limited, 5xx server failure).
func analyzeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "image could not be decoded"
	case errors.Is(err, llm.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "analysis quota exceeded, retry later"
	case errors.Is(err, service.ErrProviderFailed):
		return http.StatusBadGateway, "analysis provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

var (
	errMissingImage = errors.New("imageData is required")
	errBadBase64    = errors.New("imageData is not valid base64")
	errTooLarge     = errors.New("image is too large")
)

func readPhoto(c *gin.Context) ([]byte, error) {
	// base64 grows the payload by a third.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxPhotoBytes*4/3+1024)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("photo")
		if err != nil {
			return nil, errMissingImage
		}
		if fh.Size > MaxPhotoBytes {
			return nil, errTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, MaxPhotoBytes))
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errTooLarge
		}
		return nil, errors.New("invalid JSON body")
	}

	data := strings.TrimSpace(req.ImageData)
	// Accept data URLs as sent by browsers.
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+len(";base64,"):]
	}
	if data == "" {
		return nil, errMissingImage
	}

	photo, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errBadBase64
	}
	if len(photo) > MaxPhotoBytes {
		return nil, errTooLarge
	}
	return photo, nil
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}
