package services

import (
	"fmt"
	"sort"

	"github.com/tahcohcat/meechain/internal/achievements"
	"github.com/tahcohcat/meechain/internal/models"
)

// UnknownAchievementError carries the closest valid id, when there is one.
type UnknownAchievementError struct {
	ID         string
	Suggestion string
}

func (e *UnknownAchievementError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown achievement %q (did you mean %q?)", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("unknown achievement %q", e.ID)
}

// PlayerProgress is what AchievementService reads from a store.
type PlayerProgress interface {
	Snapshot() models.ProgressSnapshot
	Achievements() []models.UnlockedAchievement
}

type AchievementService struct {
	catalog *achievements.Catalog
}

func NewAchievementService(catalog *achievements.Catalog) *AchievementService {
	if catalog == nil {
		catalog = achievements.Default
	}
	return &AchievementService{catalog: catalog}
}

func (s *AchievementService) Catalog() *achievements.Catalog {
	return s.catalog
}

// GetPlayerAchievements returns every catalog entry with the player's
// progress. Completed badges come first, each group in catalog order.
func (s *AchievementService) GetPlayerAchievements(p PlayerProgress) []models.AchievementView {
	snap := p.Snapshot()
	held := make(map[string]models.UnlockedAchievement)
	for _, u := range p.Achievements() {
		held[u.AchievementID] = u
	}

	views := make([]models.AchievementView, 0, s.catalog.Len())
	for i, d := range s.catalog.All() {
		views = append(views, view(d, i, snap, held))
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Completed && !views[j].Completed
	})
	return views
}

// GetAchievement returns a single view, or an UnknownAchievementError.
func (s *AchievementService) GetAchievement(p PlayerProgress, id string) (models.AchievementView, error) {
	d, ok := s.catalog.Lookup(id)
	if !ok {
		return models.AchievementView{}, &UnknownAchievementError{ID: id, Suggestion: s.catalog.Suggest(id)}
	}

	held := make(map[string]models.UnlockedAchievement)
	for _, u := range p.Achievements() {
		held[u.AchievementID] = u
	}
	return view(d, s.catalog.Position(id), p.Snapshot(), held), nil
}

func view(d achievements.Definition, pos int, snap models.ProgressSnapshot, held map[string]models.UnlockedAchievement) models.AchievementView {
	cur, target := d.Progress(snap)
	v := models.AchievementView{
		ID:          d.ID,
		Icon:        d.Icon,
		Title:       d.Name,
		Description: d.Description,
		Category:    d.Category,
		Position:    pos,
		Progress:    cur,
		MaxProgress: target,
	}
	if u, ok := held[d.ID]; ok {
		at := u.UnlockedAt
		v.Completed = true
		v.CompletedAt = &at
		v.Progress = target
	}
	return v
}
