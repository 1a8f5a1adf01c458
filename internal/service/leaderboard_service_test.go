package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type stubLeaderboardStore struct {
	entries []models.LeaderboardEntry
	calls   int
}

func (s *stubLeaderboardStore) Leaderboard(_ context.Context, _ string) ([]models.LeaderboardEntry, error) {
	s.calls++
	return s.entries, nil
}

type stubLeaderboardCache struct {
	hit      []models.LeaderboardEntry
	getErr   error
	setKey   string
	setValue interface{}
}

func (s *stubLeaderboardCache) Get(_ context.Context, _ string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	*(dest.(*[]models.LeaderboardEntry)) = s.hit
	return nil
}

func (s *stubLeaderboardCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.setKey = key
	s.setValue = value
	return nil
}

func rankedEntries() []models.LeaderboardEntry {
	return []models.LeaderboardEntry{
		{Rank: 1, GroupID: "group-1", GroupName: "Garuda", TotalPoints: 220, Streak: 3, BadgeCount: 2},
		{Rank: 2, GroupID: "group-2", GroupName: "Rajawali", TotalPoints: 180, Streak: 1},
	}
}

func TestLeaderboardServiceCacheHitSkipsDatabase(t *testing.T) {
	store := &stubLeaderboardStore{entries: nil}
	cache := &stubLeaderboardCache{hit: rankedEntries()}
	svc := NewLeaderboardService(store, cache, zap.NewNop(), LeaderboardServiceConfig{CacheEnabled: true})

	entries, err := svc.Get(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Garuda", entries[0].GroupName)
	assert.Zero(t, store.calls)
}

func TestLeaderboardServiceCacheMissLoadsAndWrites(t *testing.T) {
	store := &stubLeaderboardStore{entries: rankedEntries()}
	cache := &stubLeaderboardCache{getErr: appErrors.ErrCacheMiss}
	svc := NewLeaderboardService(store, cache, zap.NewNop(), LeaderboardServiceConfig{CacheEnabled: true})

	entries, err := svc.Get(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "leaderboard:class-1", cache.setKey)
}

func TestLeaderboardServiceCacheDisabled(t *testing.T) {
	store := &stubLeaderboardStore{entries: rankedEntries()}
	cache := &stubLeaderboardCache{hit: nil}
	svc := NewLeaderboardService(store, cache, zap.NewNop(), LeaderboardServiceConfig{CacheEnabled: false})

	_, err := svc.Get(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.Empty(t, cache.setKey)
}

func TestLeaderboardServiceExportCSV(t *testing.T) {
	store := &stubLeaderboardStore{entries: rankedEntries()}
	svc := NewLeaderboardService(store, nil, zap.NewNop(), LeaderboardServiceConfig{})

	payload, filename, err := svc.ExportCSV(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Rank,Group,Points,Streak,Badges")
	assert.Contains(t, string(payload), "1,Garuda,220,3,2")
	assert.Contains(t, filename, "leaderboard_class-1_")
	assert.Contains(t, filename, ".csv")
}

func TestLeaderboardServiceExportPDF(t *testing.T) {
	store := &stubLeaderboardStore{entries: rankedEntries()}
	svc := NewLeaderboardService(store, nil, zap.NewNop(), LeaderboardServiceConfig{})

	payload, filename, err := svc.ExportPDF(context.Background(), "class-1")
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
	assert.Contains(t, filename, ".pdf")
}
