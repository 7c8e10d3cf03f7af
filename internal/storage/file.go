package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/models"
)

// FileStorage writes one JSON document per player. Saves are buffered and
// flushed by a background worker once writes go quiet for saveDelay. A
// buffered state stays visible to Load until its file is renamed into place.
type FileStorage struct {
	dir          string
	mu           sync.Mutex
	flushMu      sync.Mutex
	pending      map[string]pendingState
	seq          uint64
	saveChan     chan struct{}
	shutdownChan chan struct{}
	done         chan struct{}
	saveDelay    time.Duration
	closeOnce    sync.Once
	logger       *logger.Log
}

type pendingState struct {
	state models.PlayerState
	seq   uint64
}

func NewFileStorage(dir string, saveDelay time.Duration) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create %s: %w", dir, err)
	}
	if saveDelay <= 0 {
		saveDelay = 500 * time.Millisecond
	}

	s := &FileStorage{
		dir:          dir,
		pending:      make(map[string]pendingState),
		saveChan:     make(chan struct{}, 1),
		shutdownChan: make(chan struct{}),
		done:         make(chan struct{}),
		saveDelay:    saveDelay,
		logger:       logger.New().With("storage", "file"),
	}

	go s.saveWorker()

	return s, nil
}

func (s *FileStorage) path(playerID string) (string, error) {
	if playerID == "" || strings.ContainsAny(playerID, `/\.`) {
		return "", fmt.Errorf("storage: invalid player id %q", playerID)
	}
	return filepath.Join(s.dir, playerID+".json"), nil
}

func (s *FileStorage) Load(ctx context.Context, playerID string) (*models.PlayerState, error) {
	s.mu.Lock()
	if p, ok := s.pending[playerID]; ok {
		s.mu.Unlock()
		out := p.state.Clone()
		return &out, nil
	}
	s.mu.Unlock()

	p, err := s.path(playerID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer file.Close()

	var st models.PlayerState
	if err := json.NewDecoder(file).Decode(&st); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, p, err)
	}
	st.PlayerID = playerID
	return &st, nil
}

func (s *FileStorage) Save(ctx context.Context, state models.PlayerState) error {
	if _, err := s.path(state.PlayerID); err != nil {
		return err
	}

	s.mu.Lock()
	s.seq++
	s.pending[state.PlayerID] = pendingState{state: state.Clone(), seq: s.seq}
	s.mu.Unlock()

	select {
	case s.saveChan <- struct{}{}:
	default:
	}
	return nil
}

func (s *FileStorage) saveWorker() {
	defer close(s.done)

	timer := time.NewTimer(s.saveDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.flush(); err != nil {
				s.logger.WithError(err).Error("error saving player state")
			}
		case <-s.shutdownChan:
			return
		}
	}
}

// flush writes every buffered state. An entry leaves pending only once its
// file is on disk and no newer Save replaced it meanwhile; failed writes are
// retried on the next flush.
func (s *FileStorage) flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := make(map[string]pendingState, len(s.pending))
	for id, p := range s.pending {
		batch[id] = p
	}
	s.mu.Unlock()

	var errs []error
	for id, p := range batch {
		path, err := s.path(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := atomicWriteFileJSON(path, p.state); err != nil {
			errs = append(errs, fmt.Errorf("storage: write %s: %w", id, err))
			continue
		}

		s.mu.Lock()
		if cur, ok := s.pending[id]; ok && cur.seq == p.seq {
			delete(s.pending, id)
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Close stops the worker and writes anything still buffered.
func (s *FileStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownChan)
		<-s.done
		err = s.flush()
	})
	return err
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

var _ Repository = (*FileStorage)(nil)
