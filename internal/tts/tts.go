// Package tts voices achievement announcements.
package tts

import (
	"context"
	"errors"

	"github.com/tahcohcat/meechain/config"
)

// ErrDisabled is returned by the dummy synthesizer.
var ErrDisabled = errors.New("tts: text-to-speech is disabled")

// Synthesizer turns text into MP3 audio. mood nudges rate and pitch.
type Synthesizer interface {
	GenerateAudio(ctx context.Context, text, mood string) ([]byte, error)
	Name() string
	Close() error
}

// New returns the Google client when TTS is enabled and the dummy otherwise.
func New(ctx context.Context, cfg config.TtsConfig) (Synthesizer, error) {
	if !cfg.Enabled {
		return NewDummyTts(), nil
	}
	return NewWebGoogleTTSClient(ctx, cfg)
}
