// Package service contains the core business logic of the backend.
// AnalysisService runs the photo pipeline:
//
//	compress → result cache → LLM report → parse → persist → photo files
//
// Repeated uploads of the same photo are answered from the cache.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/imaging"
	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/metrics"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/parser"
	"github.com/fleveque/tongue-service/internal/provider"
	"github.com/fleveque/tongue-service/internal/storage"
)

var (
	// ErrInvalidImage means the upload could not be decoded as a photo.
	ErrInvalidImage = errors.New("invalid image")
	// ErrProviderFailed means no LLM provider produced a report.
	ErrProviderFailed = errors.New("analysis provider failed")
)

// Deps groups the collaborators of AnalysisService. Thumbs and Archive may
// be nil; Cache defaults to storage.NopCache.
type Deps struct {
	Analyses storage.AnalysisRepository
	Calls    storage.LLMCallRepository
	Files    *storage.FileSystem
	Reports  provider.ReportSource
	Cache    storage.ResultCache
	Thumbs   Thumbnailer
	Archive  storage.PhotoArchive
	Image    imaging.Options
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// AnalysisService is the main entry point for tongue analyses. It checks
// the fast path (result cache) before calling out to the paid providers.
type AnalysisService struct {
	analyses storage.AnalysisRepository
	calls    storage.LLMCallRepository
	fs       *storage.FileSystem
	reports  provider.ReportSource
	cache    storage.ResultCache
	thumbs   Thumbnailer
	archive  storage.PhotoArchive
	image    imaging.Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAnalysisService wires the pipeline.
func NewAnalysisService(d Deps) *AnalysisService {
	cache := d.Cache
	if cache == nil {
		cache = storage.NopCache{}
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		analyses: d.Analyses,
		calls:    d.Calls,
		fs:       d.Files,
		reports:  d.Reports,
		cache:    cache,
		thumbs:   d.Thumbs,
		archive:  d.Archive,
		image:    d.Image,
		metrics:  d.Metrics,
		logger:   logger,
	}
}

// Analyze runs one photo through the pipeline and returns the stored analysis.
// Errors wrap ErrInvalidImage, llm.ErrQuotaExceeded or ErrProviderFailed so
// the handler can pick a status code; anything else is internal.
func (s *AnalysisService) Analyze(ctx context.Context, requestID string, photo []byte) (*model.Analysis, error) {
	start := time.Now()
	a, result, err := s.analyze(ctx, requestID, photo)
	s.metrics.ObserveRequest(result, time.Since(start))
	return a, err
}

func (s *AnalysisService) analyze(ctx context.Context, requestID string, photo []byte) (*model.Analysis, string, error) {
	log := s.logger.With(zap.String("request_id", requestID))

	compressed, err := imaging.Compress(photo, s.image)
	if err != nil {
		return nil, metrics.ResultInvalidImage, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	sum := sha256.Sum256(compressed)
	hash := hex.EncodeToString(sum[:])
	log = log.With(zap.String("photo_sha256", hash))

	if a, ok := s.fromCache(ctx, hash, log); ok {
		s.metrics.CacheHit()
		return a, metrics.ResultCached, nil
	}

	report, err := s.reports.Describe(ctx, compressed, "image/jpeg", hash)
	if err != nil {
		if errors.Is(err, llm.ErrQuotaExceeded) {
			return nil, metrics.ResultQuotaExceeded, err
		}
		log.Warn("no report produced", zap.Error(err))
		return nil, metrics.ResultProviderError, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	rec := parser.ParseEnhanced(report.Text)

	a, err := model.NewAnalysis(uuid.NewString(), requestID, hash, rec)
	if err != nil {
		return nil, metrics.ResultInternalError, err
	}
	a.Provider = report.Provider
	a.Model = report.Model
	a.RawReport = report.Text

	if err := s.fs.Write(a.ID, model.PhotoOriginal, compressed); err != nil {
		return nil, metrics.ResultInternalError, fmt.Errorf("storing photo: %w", err)
	}
	if err := s.analyses.Create(ctx, a); err != nil {
		// No row will ever point at the photo.
		if derr := s.fs.Delete(a.ID); derr != nil {
			log.Warn("removing orphaned photo", zap.String("analysis_id", a.ID), zap.Error(derr))
		}
		return nil, metrics.ResultInternalError, fmt.Errorf("storing analysis: %w", err)
	}

	// Everything below is best effort: the analysis is already stored.
	s.storeThumbnail(ctx, a, compressed, log)
	s.archivePhoto(ctx, a, compressed, log)
	if err := s.cache.Set(ctx, hash, storage.CachedResult{AnalysisID: a.ID, Record: rec}); err != nil {
		log.Warn("caching result", zap.Error(err))
	}

	log.Info("analysis stored",
		zap.String("analysis_id", a.ID),
		zap.String("provider", a.Provider),
		zap.Float64("confidence", a.Confidence),
	)
	return a, metrics.ResultSuccess, nil
}

// fromCache returns the stored analysis for a cached photo hash.
func (s *AnalysisService) fromCache(ctx context.Context, hash string, log *zap.Logger) (*model.Analysis, bool) {
	cached, err := s.cache.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			log.Warn("reading result cache", zap.Error(err))
		}
		return nil, false
	}

	a, err := s.analyses.GetByID(ctx, cached.AnalysisID)
	if err != nil {
		log.Debug("cached analysis no longer stored",
			zap.String("analysis_id", cached.AnalysisID),
			zap.Error(err),
		)
		return nil, false
	}

	log.Info("cache hit", zap.String("analysis_id", a.ID))
	return a, true
}

func (s *AnalysisService) storeThumbnail(ctx context.Context, a *model.Analysis, photo []byte, log *zap.Logger) {
	if s.thumbs == nil {
		return
	}
	thumb, err := s.thumbs.Thumbnail(photo)
	if err != nil {
		log.Warn("creating thumbnail", zap.Error(err))
		return
	}
	if err := s.fs.Write(a.ID, model.PhotoThumbnail, thumb); err != nil {
		log.Warn("storing thumbnail", zap.Error(err))
		return
	}
	if err := s.analyses.SetThumbnail(ctx, a.ID); err != nil {
		log.Warn("flagging thumbnail", zap.Error(err))
		return
	}
	a.HasThumbnail = true
}

func (s *AnalysisService) archivePhoto(ctx context.Context, a *model.Analysis, photo []byte, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	url, err := s.archive.Put(ctx, storage.ArchiveKey(a.ID), photo, "image/jpeg")
	if err != nil {
		log.Warn("archiving photo", zap.Error(err))
		return
	}
	if err := s.analyses.SetArchiveURL(ctx, a.ID, url); err != nil {
		log.Warn("saving archive url", zap.Error(err))
		return
	}
	a.ArchiveURL = &url
}

// Get returns one stored analysis.
func (s *AnalysisService) Get(ctx context.Context, id string) (*model.Analysis, error) {
	return s.analyses.GetByID(ctx, id)
}

// List returns the newest analyses, at most limit (clamped to 1..100).
func (s *AnalysisService) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.analyses.List(ctx, limit)
}

// Photo returns a stored photo variant of an analysis.
func (s *AnalysisService) Photo(ctx context.Context, id string, variant model.PhotoVariant) ([]byte, error) {
	if _, err := s.analyses.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.fs.Read(id, variant)
}

// Stats summarizes stored analyses for the admin API.
type Stats struct {
	TotalAnalyses       int64            `json:"total_analyses"`
	ByProvider          map[string]int64 `json:"by_provider"`
	AverageConfidence   float64          `json:"average_confidence"`
	FailedProviderCalls int64            `json:"failed_provider_calls"`
}

func (s *AnalysisService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.analyses.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting analyses: %w", err)
	}
	byProvider, err := s.analyses.CountByProvider(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := s.analyses.AverageConfidence(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalAnalyses:     total,
		ByProvider:        byProvider,
		AverageConfidence: avg,
	}
	if s.calls != nil {
		failed, err := s.calls.CountFailures(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting failed calls: %w", err)
		}
		stats.FailedProviderCalls = failed
	}
	return stats, nil
}
