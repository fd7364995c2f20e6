package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/satriahrh/supermom/domain/repositories"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}
var _ repositories.SpeechToText = &MockSpeechToText{}

func TestBuildRecognizeRequest(t *testing.T) {
	audio := make([]byte, 3200)
	req, err := buildRecognizeRequest(audio, repositories.AudioConfig{
		SampleRate: 16000,
		Encoding:   "LINEAR16",
		Language:   "zh-CN",
	})
	if err != nil {
		t.Fatalf("buildRecognizeRequest failed: %v", err)
	}

	cfg := req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("Expected LINEAR16, got %v", cfg.GetEncoding())
	}
	if cfg.GetSampleRateHertz() != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", cfg.GetSampleRateHertz())
	}
	if cfg.GetLanguageCode() != "zh-CN" {
		t.Errorf("Expected zh-CN, got %s", cfg.GetLanguageCode())
	}
	if len(req.GetAudio().GetContent()) != 3200 {
		t.Errorf("Expected 3200 bytes of content, got %d", len(req.GetAudio().GetContent()))
	}

	if _, err := buildRecognizeRequest(audio, repositories.AudioConfig{SampleRate: 16000, Encoding: "AAC"}); err == nil {
		t.Error("Expected error for unsupported encoding")
	}
	if _, err := buildRecognizeRequest(audio, repositories.AudioConfig{Encoding: "LINEAR16"}); err == nil {
		t.Error("Expected error for missing sample rate")
	}
}

func TestJoinTranscripts(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " what can I eat "}, {Transcript: "ignored"}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "for breakfast"}}},
	}
	if got := joinTranscripts(results); got != "what can I eat for breakfast" {
		t.Errorf("Unexpected transcript %q", got)
	}
	if got := joinTranscripts(nil); got != "" {
		t.Errorf("Expected empty transcript, got %q", got)
	}
}
