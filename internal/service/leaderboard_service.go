package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
	"github.com/noah-isme/kelas-bersih-api/pkg/export"
)

type leaderboardPointsStore interface {
	Leaderboard(ctx context.Context, classID string) ([]models.LeaderboardEntry, error)
}

type leaderboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LeaderboardServiceConfig controls the read-through cache.
type LeaderboardServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// LeaderboardService serves class rankings with an optional Redis
// read-through cache and CSV/PDF export.
type LeaderboardService struct {
	points leaderboardPointsStore
	cache  leaderboardCache
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
	cfg    LeaderboardServiceConfig
}

// NewLeaderboardService constructs a LeaderboardService.
func NewLeaderboardService(points leaderboardPointsStore, cache leaderboardCache, logger *zap.Logger, cfg LeaderboardServiceConfig) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &LeaderboardService{
		points: points,
		cache:  cache,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
		cfg:    cfg,
	}
}

// Get returns the ranked leaderboard of a class. Cache failures fall back to
// the database.
func (s *LeaderboardService) Get(ctx context.Context, classID string) ([]models.LeaderboardEntry, error) {
	key := fmt.Sprintf("leaderboard:%s", classID)
	if s.cacheActive() {
		var cached []models.LeaderboardEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}

	entries, err := s.points.Leaderboard(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
	}

	if s.cacheActive() {
		if err := s.cache.Set(ctx, key, entries, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

// ExportCSV renders the leaderboard as a CSV document.
func (s *LeaderboardService) ExportCSV(ctx context.Context, classID string) ([]byte, string, error) {
	entries, err := s.Get(ctx, classID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(s.dataset(entries))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("leaderboard_%s_%s.csv", classID, time.Now().Format("20060102"))
	return payload, filename, nil
}

// ExportPDF renders the leaderboard as a PDF document.
func (s *LeaderboardService) ExportPDF(ctx context.Context, classID string) ([]byte, string, error) {
	entries, err := s.Get(ctx, classID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(s.dataset(entries), "Class Leaderboard")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	filename := fmt.Sprintf("leaderboard_%s_%s.pdf", classID, time.Now().Format("20060102"))
	return payload, filename, nil
}

func (s *LeaderboardService) dataset(entries []models.LeaderboardEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"Rank":   strconv.Itoa(e.Rank),
			"Group":  e.GroupName,
			"Points": strconv.Itoa(e.TotalPoints),
			"Streak": strconv.Itoa(e.Streak),
			"Badges": strconv.Itoa(e.BadgeCount),
		})
	}
	return export.Dataset{
		Headers: []string{"Rank", "Group", "Points", "Streak", "Badges"},
		Rows:    rows,
	}
}

func (s *LeaderboardService) cacheActive() bool {
	return s.cfg.CacheEnabled && s.cache != nil
}
