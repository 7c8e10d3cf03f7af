package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tahcohcat/meechain/internal/governance"
	"github.com/tahcohcat/meechain/internal/mining"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/progress"
	"github.com/tahcohcat/meechain/internal/tts"
)

var ErrNoNotification = errors.New("no achievement notification pending")

// ProgressService is the entry point handlers and the CLI use to drive a
// player's progress.
type ProgressService struct {
	registry  *progress.Registry
	analyzer  *governance.Analyzer
	simulator *mining.Simulator
	voice     tts.Synthesizer
}

func NewProgressService(registry *progress.Registry, analyzer *governance.Analyzer, simulator *mining.Simulator, voice tts.Synthesizer) *ProgressService {
	if voice == nil {
		voice = tts.NewDummyTts()
	}
	return &ProgressService{
		registry:  registry,
		analyzer:  analyzer,
		simulator: simulator,
		voice:     voice,
	}
}

// Store loads (or creates) the player's store.
func (s *ProgressService) Store(ctx context.Context, playerID string) (*progress.Store, error) {
	return s.registry.Get(ctx, playerID)
}

func (s *ProgressService) Mint(ctx context.Context, playerID string) (models.ActionResult, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return models.ActionResult{}, err
	}
	return st.RecordMint(), nil
}

func (s *ProgressService) CreatePersona(ctx context.Context, playerID string) (models.ActionResult, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return models.ActionResult{}, err
	}
	return st.RecordPersonaCreated(), nil
}

// AnalyzeProposal runs the analysis and counts it only when it succeeded.
func (s *ProgressService) AnalyzeProposal(ctx context.Context, playerID string, p governance.Proposal) (*governance.Analysis, models.ActionResult, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return nil, models.ActionResult{}, err
	}

	analysis, err := s.analyzer.Analyze(ctx, p)
	if err != nil {
		return nil, models.ActionResult{}, err
	}
	return analysis, st.RecordProposalAnalyzed(), nil
}

// RecordProposalAnalyzed counts an analysis performed elsewhere.
func (s *ProgressService) RecordProposalAnalyzed(ctx context.Context, playerID string) (models.ActionResult, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return models.ActionResult{}, err
	}
	return st.RecordProposalAnalyzed(), nil
}

func (s *ProgressService) RecordEvent(ctx context.Context, playerID string, kind models.EventType, message, chainTag string) (models.TimelineEvent, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return models.TimelineEvent{}, err
	}
	return st.RecordEvent(kind, message, chainTag)
}

func (s *ProgressService) StartMining(ctx context.Context, playerID string) (mining.Status, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return mining.Status{}, err
	}
	if err := s.simulator.Start(playerID, st, true); err != nil {
		return mining.Status{}, err
	}
	return s.simulator.Status(playerID), nil
}

func (s *ProgressService) StopMining(playerID string) error {
	return s.simulator.Stop(playerID)
}

func (s *ProgressService) MiningStatus(ctx context.Context, playerID string) (mining.Status, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return mining.Status{}, err
	}
	status := s.simulator.Status(playerID)
	if !status.Running {
		status.Level = st.Snapshot().MiningLevel
	}
	return status, nil
}

// Announcement voices the pending notification.
func (s *ProgressService) Announcement(ctx context.Context, playerID string) ([]byte, error) {
	st, err := s.Store(ctx, playerID)
	if err != nil {
		return nil, err
	}
	n, ok := st.Notification()
	if !ok {
		return nil, ErrNoNotification
	}
	text := fmt.Sprintf("Achievement unlocked: %s. %s", n.Title, n.Description)
	return s.voice.GenerateAudio(ctx, text, "celebratory")
}

func (s *ProgressService) Subscribe(l progress.Listener) {
	s.registry.Subscribe(l)
}

// Disconnect stops the player's rig and unloads their store.
func (s *ProgressService) Disconnect(ctx context.Context, playerID string) error {
	if err := s.simulator.Stop(playerID); err != nil && !errors.Is(err, mining.ErrNotRunning) {
		return err
	}
	return s.registry.Evict(ctx, playerID)
}

// Close stops every rig before the registry saves and closes.
func (s *ProgressService) Close(ctx context.Context) error {
	s.simulator.Close()
	return errors.Join(s.registry.Close(ctx), s.voice.Close())
}
