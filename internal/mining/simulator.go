// Package mining runs the idle hash-rate simulation that drives a player's
// mining level.
package mining

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/models"
)

var (
	ErrAlreadyRunning = errors.New("mining: rig already running")
	ErrNotRunning     = errors.New("mining: rig not running")
)

// LevelSetter receives level increases. progress.Store satisfies it.
type LevelSetter interface {
	SetMiningLevel(level int) models.ActionResult
	Snapshot() models.ProgressSnapshot
}

type Status struct {
	Running  bool  `json:"running"`
	Hashes   int64 `json:"hashes"`
	Level    int   `json:"level"`
	LastGain int   `json:"last_gain"`
}

type rig struct {
	setter   LevelSetter
	hashes   int64
	level    int
	lastGain int
	stop     chan struct{}
}

type Simulator struct {
	mu     sync.Mutex
	cfg    config.MiningConfig
	rng    *rand.Rand
	rigs   map[string]*rig
	wg     sync.WaitGroup
	closed bool
	logger *logger.Log
}

// NewSimulator applies defaults to zero config values. rng may be nil.
func NewSimulator(cfg config.MiningConfig, rng *rand.Rand) *Simulator {
	if cfg.Tick <= 0 {
		cfg.Tick = 2 * time.Second
	}
	if cfg.HashesPerLevel <= 0 {
		cfg.HashesPerLevel = 1000
	}
	if cfg.MinHashes < 0 {
		cfg.MinHashes = 0
	}
	if cfg.MaxHashes < cfg.MinHashes {
		cfg.MaxHashes = cfg.MinHashes
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		cfg:    cfg,
		rng:    rng,
		rigs:   make(map[string]*rig),
		logger: logger.New().With("component", "mining"),
	}
}

// Start begins mining for playerID, resuming from the setter's current level.
// When tick is false the rig only advances through Step.
func (s *Simulator) Start(playerID string, setter LevelSetter, tick bool) error {
	level := setter.Snapshot().MiningLevel

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotRunning
	}
	if _, ok := s.rigs[playerID]; ok {
		return ErrAlreadyRunning
	}

	r := &rig{
		setter: setter,
		hashes: int64(level) * int64(s.cfg.HashesPerLevel),
		level:  level,
		stop:   make(chan struct{}),
	}
	s.rigs[playerID] = r

	if tick {
		s.wg.Add(1)
		go s.run(playerID, r)
	}
	s.logger.With("player", playerID).Info("mining started")
	return nil
}

func (s *Simulator) run(playerID string, r *rig) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Step(playerID)
		case <-r.stop:
			return
		}
	}
}

// Step adds one tick's worth of hashes and pushes a level increase, if any,
// to the setter. It returns the rig's status afterwards.
func (s *Simulator) Step(playerID string) (Status, error) {
	s.mu.Lock()
	r, ok := s.rigs[playerID]
	if !ok {
		s.mu.Unlock()
		return Status{}, ErrNotRunning
	}

	gain := s.cfg.MinHashes
	if spread := s.cfg.MaxHashes - s.cfg.MinHashes; spread > 0 {
		gain += s.rng.Intn(spread + 1)
	}
	r.hashes += int64(gain)
	r.lastGain = gain

	newLevel := int(r.hashes / int64(s.cfg.HashesPerLevel))
	raised := newLevel > r.level
	if raised {
		r.level = newLevel
	}
	st := r.status()
	s.mu.Unlock()

	if raised {
		res := r.setter.SetMiningLevel(newLevel)
		if len(res.Unlocked) > 0 {
			s.logger.With("player", playerID).With("level", newLevel).Debug("mining level unlocked achievements")
		}
	}
	return st, nil
}

func (r *rig) status() Status {
	return Status{Running: true, Hashes: r.hashes, Level: r.level, LastGain: r.lastGain}
}

// Stop halts the player's rig.
func (s *Simulator) Stop(playerID string) error {
	s.mu.Lock()
	r, ok := s.rigs[playerID]
	delete(s.rigs, playerID)
	s.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	close(r.stop)
	s.logger.With("player", playerID).Info("mining stopped")
	return nil
}

func (s *Simulator) Status(playerID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rigs[playerID]
	if !ok {
		return Status{}
	}
	return r.status()
}

// Close stops every rig and waits for their goroutines.
func (s *Simulator) Close() {
	s.mu.Lock()
	s.closed = true
	rigs := s.rigs
	s.rigs = make(map[string]*rig)
	s.mu.Unlock()

	for _, r := range rigs {
		close(r.stop)
	}
	s.wg.Wait()
}
