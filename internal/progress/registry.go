package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/storage"
	"golang.org/x/sync/singleflight"
)

const saveTimeout = 5 * time.Second

// Registry hands out one Store per player, loading it from the repository on
// first use and saving it after every change.
type Registry struct {
	mu        sync.RWMutex
	stores    map[string]*Store
	repo      storage.Repository
	opts      Options
	listeners []Listener
	group     singleflight.Group
	closed    bool
	log       *logger.Log
}

func NewRegistry(repo storage.Repository, opts Options) *Registry {
	return &Registry{
		stores: make(map[string]*Store),
		repo:   repo,
		opts:   opts,
		log:    logger.New().With("component", "registry"),
	}
}

// Subscribe attaches l to every store, including ones loaded later.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		s.Subscribe(l)
	}
}

var ErrClosed = errors.New("progress: registry closed")

// Get returns the player's store, restoring it on first access. A missing or
// unreadable record starts the player from zero.
func (r *Registry) Get(ctx context.Context, playerID string) (*Store, error) {
	r.mu.RLock()
	s, ok := r.stores[playerID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(playerID, func() (interface{}, error) {
		r.mu.RLock()
		s, ok := r.stores[playerID]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}

		initial := models.PlayerState{PlayerID: playerID}
		loaded, err := r.repo.Load(ctx, playerID)
		switch {
		case err == nil:
			initial = *loaded
			initial.PlayerID = playerID
		case errors.Is(err, storage.ErrNotFound):
		case errors.Is(err, storage.ErrCorruptState):
			r.log.WithError(err).With("player", playerID).Warn("discarding unreadable player state")
		default:
			return nil, err
		}

		s = NewStore(initial, r.opts)
		s.Subscribe(ListenerFunc(r.persist))

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.Close()
			return nil, ErrClosed
		}
		for _, l := range r.listeners {
			s.Subscribe(l)
		}
		r.stores[playerID] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Peek returns an already loaded store without touching the repository.
func (r *Registry) Peek(playerID string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[playerID]
	return s, ok
}

func (r *Registry) persist(u Update) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, u.State); err != nil {
		r.log.WithError(err).With("player", u.State.PlayerID).Error("failed to persist player state")
	}
}

// Evict drops the player's store after saving its final state.
func (r *Registry) Evict(ctx context.Context, playerID string) error {
	r.mu.Lock()
	s, ok := r.stores[playerID]
	delete(r.stores, playerID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	s.Close()
	return r.repo.Save(ctx, s.State())
}

// Close stops every store, saves its last state and closes the repository.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	var errs []error
	for _, s := range stores {
		s.Close()
		if err := r.repo.Save(ctx, s.State()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
