package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/models"
)

func sampleState(id string) models.PlayerState {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.PlayerState{
		PlayerID: id,
		Progress: models.ProgressSnapshot{BotsMinted: 2, ProposalsAnalyzed: 1, PersonasCreated: 1},
		Achievements: []models.UnlockedAchievement{
			{AchievementID: "genesis-creator", UnlockedAt: at},
			{AchievementID: "first-insight", UnlockedAt: at},
		},
		Timeline: []models.TimelineEvent{
			{ID: "ev-1", Type: models.EventCreation, Message: "Minted a new MeeBot", Timestamp: at.UnixMilli(), Status: models.StatusConfirmed, ChainTag: "meechain-testnet"},
			{ID: "ev-2", Type: models.EventAchievementUnlock, Message: "Unlocked", Timestamp: at.UnixMilli(), Status: models.StatusStaged},
		},
		Unseen: []string{"meechain-citizen"},
		Notification: &models.Notification{
			AchievementID: "first-insight",
			Icon:          "🔍",
			Title:         "First Insight",
			Description:   "Analyzed your first proposal",
			RaisedAt:      at,
		},
		UpdatedAt: at,
	}
}

func assertSameState(t *testing.T, want models.PlayerState, got *models.PlayerState) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.PlayerID, got.PlayerID)
	assert.Equal(t, want.Progress, got.Progress)
	assert.Equal(t, want.Timeline, got.Timeline)
	assert.Equal(t, want.Unseen, got.Unseen)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", want.UpdatedAt, got.UpdatedAt)
	if want.Notification == nil {
		assert.Nil(t, got.Notification)
	} else if assert.NotNil(t, got.Notification) {
		assert.Equal(t, want.Notification.AchievementID, got.Notification.AchievementID)
		assert.Equal(t, want.Notification.Title, got.Notification.Title)
		assert.True(t, want.Notification.RaisedAt.Equal(got.Notification.RaisedAt))
	}
	require.Len(t, got.Achievements, len(want.Achievements))
	for i := range want.Achievements {
		assert.Equal(t, want.Achievements[i].AchievementID, got.Achievements[i].AchievementID)
		assert.True(t, want.Achievements[i].UnlockedAt.Equal(got.Achievements[i].UnlockedAt))
	}
}

var backends = map[string]func(t *testing.T) Repository{
	"memory": func(t *testing.T) Repository { return NewMemoryStorage() },
	"file": func(t *testing.T) Repository {
		s, err := NewFileStorage(t.TempDir(), 10*time.Millisecond)
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T) Repository {
		r, err := New(context.Background(), config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "test.db"),
		})
		require.NoError(t, err)
		return r
	},
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			defer repo.Close()

			_, err := repo.Load(ctx, "0xabc")
			assert.ErrorIs(t, err, ErrNotFound)

			want := sampleState("0xabc")
			require.NoError(t, repo.Save(ctx, want))

			got, err := repo.Load(ctx, "0xabc")
			require.NoError(t, err)
			assertSameState(t, want, got)
		})
	}
}

func TestRepositorySaveOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			defer repo.Close()

			st := sampleState("0xabc")
			require.NoError(t, repo.Save(ctx, st))

			st.Progress.BotsMinted = 5
			st.Notification = nil
			st.Timeline[1].Status = models.StatusConfirmed
			st.Achievements = append(st.Achievements, models.UnlockedAchievement{
				AchievementID: "bot-collector", UnlockedAt: st.UpdatedAt,
			})
			require.NoError(t, repo.Save(ctx, st))

			got, err := repo.Load(ctx, "0xabc")
			require.NoError(t, err)
			assertSameState(t, st, got)
		})
	}
}

func TestRepositoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			defer repo.Close()

			require.NoError(t, repo.Save(ctx, sampleState("0xabc")))

			got, err := repo.Load(ctx, "0xabc")
			require.NoError(t, err)
			got.Timeline[0].Message = "mutated"

			again, err := repo.Load(ctx, "0xabc")
			require.NoError(t, err)
			assert.Equal(t, "Minted a new MeeBot", again.Timeline[0].Message)
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{Driver: "mongo"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)
}
