package tts

import (
	"context"

	"github.com/tahcohcat/meechain/internal/logger"
)

type DummyTts struct {
}

func NewDummyTts() *DummyTts {
	return &DummyTts{}
}

func (d *DummyTts) GenerateAudio(_ context.Context, text, mood string) ([]byte, error) {
	logger.New().Debug("no tts configured. ignoring TTS request")
	return nil, ErrDisabled
}

func (d *DummyTts) Name() string {
	return "dummy"
}

func (d *DummyTts) Close() error {
	return nil
}
