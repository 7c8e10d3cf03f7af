package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/timeline"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, initial models.PlayerState) (*Store, *timeline.ManualClock) {
	t.Helper()
	clock := timeline.NewManualClock(epoch)
	if initial.PlayerID == "" {
		initial.PlayerID = "0xplayer"
	}
	s := NewStore(initial, Options{Clock: clock, ConfirmDelay: timeline.DefaultConfirmDelay, ChainTag: "meechain-testnet"})
	t.Cleanup(s.Close)
	return s, clock
}

func ids(unlocked []models.UnlockedAchievement) []string {
	out := make([]string, 0, len(unlocked))
	for _, u := range unlocked {
		out = append(out, u.AchievementID)
	}
	return out
}

func TestFirstMintUnlocksGenesisCreator(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	res := s.RecordMint()
	assert.Equal(t, 1, res.Progress.BotsMinted)
	assert.Equal(t, []string{"genesis-creator"}, ids(res.Unlocked))
	require.NotNil(t, res.Notification)
	assert.Equal(t, "genesis-creator", res.Notification.AchievementID)
	assert.Equal(t, "Genesis Creator", res.Notification.Title)

	require.Len(t, res.Events, 2)
	assert.Equal(t, models.EventCreation, res.Events[0].Type)
	assert.Equal(t, models.EventAchievementUnlock, res.Events[1].Type)
	assert.Equal(t, "meechain-testnet", res.Events[1].ChainTag)
	assert.True(t, s.Has("genesis-creator"))
}

func TestSecondMintUnlocksNothing(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})
	s.RecordMint()

	res := s.RecordMint()
	assert.Equal(t, 2, res.Progress.BotsMinted)
	assert.Empty(t, res.Unlocked)
	assert.Nil(t, res.Notification)
	assert.Len(t, res.Events, 1)
	assert.Len(t, s.Achievements(), 1)
}

func TestAnalystThreshold(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{
		Progress:     models.ProgressSnapshot{ProposalsAnalyzed: 4},
		Achievements: []models.UnlockedAchievement{{AchievementID: "first-insight", UnlockedAt: epoch}},
	})

	res := s.RecordProposalAnalyzed()
	assert.Equal(t, 5, res.Progress.ProposalsAnalyzed)
	assert.Equal(t, []string{"insightful-analyst"}, ids(res.Unlocked))

	res = s.RecordProposalAnalyzed()
	assert.Equal(t, 6, res.Progress.ProposalsAnalyzed)
	assert.Empty(t, res.Unlocked)
}

func TestSimultaneousUnlocksShowFirstOnly(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	s.RecordPersonaCreated()
	s.Dismiss()
	s.RecordProposalAnalyzed()
	s.Dismiss()

	res := s.RecordMint()
	assert.Equal(t, []string{"genesis-creator", "meechain-citizen"}, ids(res.Unlocked))
	require.NotNil(t, res.Notification)
	assert.Equal(t, "genesis-creator", res.Notification.AchievementID)

	n, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, "genesis-creator", n.AchievementID)
	assert.Equal(t, []string{"meechain-citizen"}, s.State().Unseen)

	assert.True(t, s.Dismiss())
	_, ok = s.Notification()
	assert.False(t, ok, "unseen achievements are not queued")
	assert.False(t, s.Dismiss())
}

func TestNewUnlockReplacesUndismissedNotification(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	s.RecordMint()
	s.RecordPersonaCreated()

	n, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, "persona-pioneer", n.AchievementID)
}

func TestAchievementsAreNeverLost(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	var held []string
	for i := 0; i < 30; i++ {
		switch i % 3 {
		case 0:
			s.RecordMint()
		case 1:
			s.RecordProposalAnalyzed()
		default:
			s.RecordPersonaCreated()
		}
		now := ids(s.Achievements())
		assert.Subset(t, now, held)
		held = now
	}
	assert.Equal(t, models.ProgressSnapshot{BotsMinted: 10, ProposalsAnalyzed: 10, PersonasCreated: 10}, s.Snapshot())
}

func TestSetMiningLevelIsMonotonic(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	res := s.SetMiningLevel(1)
	assert.Equal(t, []string{"novice-miner"}, ids(res.Unlocked))
	assert.Len(t, res.Events, 1, "only the unlock is recorded")

	res = s.SetMiningLevel(0)
	assert.Equal(t, 1, res.Progress.MiningLevel)
	assert.Empty(t, res.Events)

	res = s.SetMiningLevel(12)
	assert.Equal(t, 12, res.Progress.MiningLevel)
	assert.Equal(t, []string{"master-miner"}, ids(res.Unlocked))
}

func TestTimelineConfirmsAfterDelay(t *testing.T) {
	s, clock := newTestStore(t, models.PlayerState{})

	res := s.RecordMint()
	for _, ev := range s.Timeline() {
		assert.Equal(t, models.StatusStaged, ev.Status)
	}

	clock.Advance(timeline.DefaultConfirmDelay)
	events := s.Timeline()
	require.Len(t, events, len(res.Events))
	for _, ev := range events {
		assert.Equal(t, models.StatusConfirmed, ev.Status)
		assert.Equal(t, epoch.UnixMilli(), ev.Timestamp)
	}
}

func TestListenersSeeUpdatesInOrder(t *testing.T) {
	s, clock := newTestStore(t, models.PlayerState{})

	var mu sync.Mutex
	var seen []models.ProgressSnapshot
	var notes []*models.Notification
	s.Subscribe(ListenerFunc(func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, u.State.Progress)
		notes = append(notes, u.Notification)
	}))

	s.RecordMint()
	s.RecordMint()
	clock.Advance(timeline.DefaultConfirmDelay)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0].BotsMinted)
	assert.Equal(t, 2, seen[1].BotsMinted)
	assert.Equal(t, 2, seen[2].BotsMinted)
	require.NotNil(t, notes[0])
	assert.Equal(t, "genesis-creator", notes[0].AchievementID)
}

func TestConcurrentActionsCountEveryCall(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordMint()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Snapshot().BotsMinted)
	assert.Equal(t, []string{"genesis-creator", "bot-collector", "meebot-legion"}, ids(s.Achievements()))
}

func TestRestoreKeepsStateAndConfirmsStaged(t *testing.T) {
	initial := models.PlayerState{
		Progress:     models.ProgressSnapshot{BotsMinted: 3, MiningLevel: -2},
		Achievements: []models.UnlockedAchievement{{AchievementID: "genesis-creator", UnlockedAt: epoch}},
		Timeline: []models.TimelineEvent{
			{ID: "a", Type: models.EventCreation, Message: "old", Timestamp: epoch.UnixMilli(), Status: models.StatusStaged},
		},
		Unseen: []string{"meechain-citizen"},
	}
	s, clock := newTestStore(t, initial)

	assert.Equal(t, 0, s.Snapshot().MiningLevel)
	assert.Equal(t, []string{"genesis-creator"}, ids(s.Achievements()))

	res := s.RecordMint()
	assert.Empty(t, res.Unlocked)

	clock.Advance(timeline.DefaultConfirmDelay)
	st := s.State()
	assert.Equal(t, []string{"meechain-citizen"}, st.Unseen)
	for _, ev := range st.Timeline {
		assert.Equal(t, models.StatusConfirmed, ev.Status)
	}
}

func TestRestoreDropsNotificationForUnheldAchievement(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{
		Achievements: []models.UnlockedAchievement{{AchievementID: "genesis-creator", UnlockedAt: epoch}},
		Notification: &models.Notification{AchievementID: "bot-collector", RaisedAt: epoch},
	})
	_, ok := s.Notification()
	assert.False(t, ok)

	s, _ = newTestStore(t, models.PlayerState{
		Achievements: []models.UnlockedAchievement{{AchievementID: "genesis-creator", UnlockedAt: epoch}},
		Notification: &models.Notification{AchievementID: "genesis-creator", Title: "Genesis Creator", RaisedAt: epoch},
	})
	n, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, "genesis-creator", n.AchievementID)
	assert.Equal(t, "genesis-creator", s.State().Notification.AchievementID)
}

func TestRecordEvent(t *testing.T) {
	s, _ := newTestStore(t, models.PlayerState{})

	ev, err := s.RecordEvent(models.EventGift, "Received a gift", "")
	require.NoError(t, err)
	assert.Equal(t, models.EventGift, ev.Type)
	assert.Equal(t, models.StatusStaged, ev.Status)

	_, err = s.RecordEvent(models.EventAchievementUnlock, "sneaky", "")
	assert.ErrorIs(t, err, ErrReservedEventType)

	_, err = s.RecordEvent("teleport", "nope", "")
	assert.ErrorIs(t, err, models.ErrUnknownEventType)

	assert.Len(t, s.Timeline(), 1)
}
