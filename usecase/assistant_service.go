package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/codec"
)

// System instructions per persona
const (
	nutritionAdvisorInstruction = "You are a warm, practical postpartum nutrition advisor. " +
		"Suggest simple meals that help a new mother recover and breastfeed. " +
		"Answer in the user's language in a few short sentences, without markdown."

	emotionalSupportInstruction = "You are a gentle listener supporting a new mother. " +
		"Acknowledge her feelings first, then offer one small, concrete comfort. " +
		"Answer in the user's language in a few short sentences, without markdown."

	praiseInstruction = "You are a loving husband. Praise your wife warmly and specifically " +
		"for what she just finished, in one or two sentences, in the language of the task."
)

// Reply is generated assistant text with optional synthesized speech
type Reply struct {
	Text  string
	Audio string // base64, empty when synthesis failed
}

// AssistantService runs recognition, generation and synthesis for the
// backend side of both protocols
type AssistantService struct {
	speechToText repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech
	encoder      *codec.Encoder
	language     string
	logger       *zap.Logger
}

// NewAssistantService creates a new assistant service
func NewAssistantService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	encoder *codec.Encoder,
	language string,
	logger *zap.Logger,
) *AssistantService {
	return &AssistantService{
		speechToText: stt,
		llm:          llm,
		textToSpeech: tts,
		encoder:      encoder,
		language:     language,
		logger:       logger,
	}
}

// Recognize transcribes base64 PCM16 at 16 kHz
func (s *AssistantService) Recognize(ctx context.Context, payload string) (string, error) {
	pcm, err := s.encoder.Decode(payload)
	if err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", audio.ErrEmptyRecording
	}

	audioConfig := repositories.AudioConfig{
		SampleRate: audio.TargetSampleRate,
		Encoding:   "LINEAR16",
		Language:   s.language,
	}

	text, err := s.speechToText.TranscribeAudio(ctx, pcm, audioConfig)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	s.logger.Info("Transcription completed",
		zap.Int("audioSize", len(pcm)),
		zap.Int("textLength", len(text)))
	return strings.TrimSpace(text), nil
}

// Reply answers a user message with the persona of chatType
func (s *AssistantService) Reply(ctx context.Context, chatType domain.ChatType, userText string) (Reply, error) {
	instruction, err := instructionFor(chatType)
	if err != nil {
		return Reply{}, err
	}
	return s.generate(ctx, instruction, userText)
}

// Praise generates praise for a completed memo
func (s *AssistantService) Praise(ctx context.Context, memoText string) (Reply, error) {
	prompt := fmt.Sprintf("My wife just completed the task %q. Please praise her.", memoText)
	return s.generate(ctx, praiseInstruction, prompt)
}

func (s *AssistantService) generate(ctx context.Context, instruction, prompt string) (Reply, error) {
	text, err := s.llm.Generate(ctx, instruction, prompt)
	if err != nil {
		return Reply{}, fmt.Errorf("generation failed: %w", err)
	}
	text = strings.TrimSpace(text)

	s.logger.Info("AI response generated", zap.Int("textLength", len(text)))

	speech, err := s.textToSpeech.Synthesize(ctx, text)
	if err != nil {
		// Text is always delivered; speech is supplementary.
		s.logger.Warn("Text-to-speech failed", zap.Error(err))
		return Reply{Text: text}, nil
	}

	s.logger.Info("TTS completed",
		zap.Int("audioSize", len(speech.Data)),
		zap.String("format", speech.Format))

	return Reply{Text: text, Audio: s.encoder.Encode(speech.Data)}, nil
}

func instructionFor(chatType domain.ChatType) (string, error) {
	switch chatType {
	case domain.ChatTypeNutritionAdvisor:
		return nutritionAdvisorInstruction, nil
	case domain.ChatTypeEmotionalSupport:
		return emotionalSupportInstruction, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownChatType, chatType)
}
