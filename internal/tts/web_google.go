package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	tts "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/logger"
	"google.golang.org/api/option"
)

type WebGoogleTTS struct {
	client *texttospeech.Client
	voice  string
	logger *logger.Log
}

// NewWebGoogleTTSClient uses the credentials file from config when set and
// application default credentials otherwise.
func NewWebGoogleTTSClient(ctx context.Context, cfg config.TtsConfig) (*WebGoogleTTS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}

	voice := cfg.Voice
	if voice == "" {
		voice = "en-US-Chirp-HD-F"
	}

	return &WebGoogleTTS{
		client: client,
		voice:  voice,
		logger: logger.New().With("tts", "google"),
	}, nil
}

// Extract language code from voice name (e.g., "en-US-Chirp-HD-F" -> "en-US")
func extractLanguageCode(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s-%s", parts[0], parts[1])
	}
	return "en-US"
}

func (g *WebGoogleTTS) GenerateAudio(ctx context.Context, text, mood string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	languageCode := extractLanguageCode(g.voice)

	req := &tts.SynthesizeSpeechRequest{
		Input: &tts.SynthesisInput{
			InputSource: &tts.SynthesisInput_Text{Text: text},
		},
		Voice: &tts.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         g.voice,
		},
		AudioConfig: &tts.AudioConfig{
			AudioEncoding:   tts.AudioEncoding_MP3,
			SpeakingRate:    speakingRateForMood(mood),
			Pitch:           pitchForMood(mood),
			SampleRateHertz: 22050,
		},
	}

	g.logger.Debug(fmt.Sprintf("Generating Google TTS audio with voice: %s, language: %s, mood: %s",
		g.voice, languageCode, mood))

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	if len(resp.AudioContent) == 0 {
		return nil, fmt.Errorf("empty audio content received from Google TTS")
	}

	g.logger.Debug(fmt.Sprintf("Generated %d bytes of MP3 audio", len(resp.AudioContent)))
	return resp.AudioContent, nil
}

func (g *WebGoogleTTS) Name() string {
	return "Google Cloud Text-to-Speech"
}

func (g *WebGoogleTTS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func speakingRateForMood(mood string) float64 {
	switch strings.ToLower(mood) {
	case "celebratory", "excited":
		return 1.1
	case "calm":
		return 0.95
	default:
		return 1.0
	}
}

func pitchForMood(mood string) float64 {
	switch strings.ToLower(mood) {
	case "celebratory", "excited":
		return 2.0
	case "calm":
		return -1.0
	default:
		return 0.0
	}
}
