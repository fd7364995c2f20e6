package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/chat"
)

const testBanner = 30 * time.Millisecond

func newTestMemoSurface(t *testing.T, recognizer *fakeRecognizer) (*MemoSurface, *fakeView, *fakePlayer) {
	t.Helper()
	view := &fakeView{}
	player := &fakePlayer{}
	logger := zaptest.NewLogger(t)
	s := NewMemoSurface(audio.NewTranscoder(logger), recognizer, player, view, logger, WithBannerDuration(testBanner))
	return s, view, player
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoSurface_AddShowsBanner(t *testing.T) {
	s, view, _ := newTestMemoSurface(t, &fakeRecognizer{})
	defer s.Close()

	memo, err := s.AddMemo("  buy diapers ")
	if err != nil {
		t.Fatalf("AddMemo failed: %v", err)
	}
	if memo.Text != "buy diapers" {
		t.Errorf("Expected trimmed text, got %q", memo.Text)
	}
	if banner, ok := s.Banner(); !ok || banner != "Added: buy diapers" {
		t.Errorf("Expected confirmation banner, got %q", banner)
	}

	waitFor(t, func() bool { return view.hiddenCount() == 1 })
	if _, ok := s.Banner(); ok {
		t.Error("Expected banner to expire")
	}
	if len(view.memos) != 1 {
		t.Errorf("Expected one board update, got %d", len(view.memos))
	}

	if _, err := s.AddMemo("   "); err == nil {
		t.Error("Expected error for blank memo")
	}
}

func TestMemoSurface_NewerBannerWins(t *testing.T) {
	s, view, _ := newTestMemoSurface(t, &fakeRecognizer{})
	defer s.Close()

	s.AddMemo("first")
	s.AddMemo("second")

	waitFor(t, func() bool { return view.hiddenCount() >= 1 })
	time.Sleep(2 * testBanner)
	if n := view.hiddenCount(); n != 1 {
		t.Errorf("Expected the banner hidden once, got %d", n)
	}
}

func TestMemoSurface_CompleteAndPraise(t *testing.T) {
	s, view, player := newTestMemoSurface(t, &fakeRecognizer{})
	ch := newFakeChannel()
	if err := s.Connect(context.Background(), ch.factory()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	memo, _ := s.AddMemo("fold laundry")
	if err := s.CompleteMemo(memo.ID); err != nil {
		t.Fatalf("CompleteMemo failed: %v", err)
	}

	sent := ch.sentMessages()
	want := domain.OutboundMessage{Type: domain.MessageTypeMemoComplete, MemoText: "fold laundry"}
	if len(sent) != 1 || sent[0] != want {
		t.Fatalf("Expected %+v, got %+v", want, sent)
	}

	// Completing twice does not ask for praise again.
	if err := s.CompleteMemo(memo.ID); err != nil {
		t.Fatalf("Second CompleteMemo failed: %v", err)
	}
	if len(ch.sentMessages()) != 1 {
		t.Errorf("Expected no second memo_complete, got %d messages", len(ch.sentMessages()))
	}

	ch.deliver(chat.PraiseEvent{PraiseText: "You are amazing", Audio: "SUQz"})
	if banner, _ := s.Banner(); banner != "You are amazing" {
		t.Errorf("Expected praise banner, got %q", banner)
	}
	waitFor(t, func() bool {
		banner, ok := s.Banner()
		return !ok && banner == ""
	})

	s.Close()
	if calls := player.callList(); len(calls) != 1 || calls[0].payload != "SUQz" {
		t.Errorf("Expected praise audio played once, got %+v", calls)
	}
	if view.banners[len(view.banners)-1] != "You are amazing" {
		t.Errorf("Unexpected banners %v", view.banners)
	}
}

func TestMemoSurface_CompleteNotConnected(t *testing.T) {
	s, view, _ := newTestMemoSurface(t, &fakeRecognizer{})
	defer s.Close()

	memo, _ := s.AddMemo("call mom")
	err := s.CompleteMemo(memo.ID)
	if !errors.Is(err, chat.ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}
	if alerts := view.alertList(); len(alerts) != 1 || alerts[0] != AlertConnectionLost {
		t.Errorf("Expected connection lost alert, got %v", alerts)
	}
	memos := s.Memos()
	if len(memos) != 1 || !memos[0].Done {
		t.Errorf("Expected memo to stay done locally, got %+v", memos)
	}
}

func TestMemoSurface_PraiseError(t *testing.T) {
	s, view, _ := newTestMemoSurface(t, &fakeRecognizer{})
	ch := newFakeChannel()
	if err := s.Connect(context.Background(), ch.factory()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Close()

	ch.deliver(chat.ErrorEvent{Type: domain.MessageTypeMemoPraise, Message: "tts failed"})
	if alerts := view.alertList(); len(alerts) != 1 || alerts[0] != "Error: tts failed" {
		t.Errorf("Expected praise error alert, got %v", alerts)
	}
	if _, ok := s.Banner(); ok {
		t.Error("Error should not show a banner")
	}
}

func TestMemoSurface_VoiceMemo(t *testing.T) {
	recognizer := &fakeRecognizer{text: "book pediatrician visit"}
	s, _, _ := newTestMemoSurface(t, recognizer)
	defer s.Close()

	memo, err := s.AddMemoFromRecording(context.Background(), stereoRecording(t, 1, 44100))
	if err != nil {
		t.Fatalf("AddMemoFromRecording failed: %v", err)
	}
	if memo.Text != "book pediatrician visit" {
		t.Errorf("Unexpected memo text %q", memo.Text)
	}
	if len(recognizer.got) != 16000 {
		t.Errorf("Expected recognizer to get 16000 samples, got %d", len(recognizer.got))
	}
}

func TestMemoSurface_VoiceMemoFailures(t *testing.T) {
	tests := []struct {
		name       string
		recognizer *fakeRecognizer
		blob       audio.Blob
		wantErr    error
		alert      string
	}{
		{
			name:       "nothing recognized",
			recognizer: &fakeRecognizer{text: "  "},
			wantErr:    ErrNothingRecognized,
			alert:      AlertNothingHeard,
		},
		{
			name:       "empty recording",
			recognizer: &fakeRecognizer{text: "x"},
			blob:       audio.Blob{MimeType: "audio/wav"},
			wantErr:    audio.ErrEmptyRecording,
			alert:      AlertEmptyRecording,
		},
		{
			name:       "recognizer down",
			recognizer: &fakeRecognizer{err: errors.New("503")},
			alert:      AlertGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, view, _ := newTestMemoSurface(t, tt.recognizer)
			defer s.Close()

			blob := tt.blob
			if blob.Data == nil && blob.MimeType == "" {
				blob = stereoRecording(t, 0.5, 16000)
			}

			_, err := s.AddMemoFromRecording(context.Background(), blob)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if alerts := view.alertList(); len(alerts) != 1 || alerts[0] != tt.alert {
				t.Errorf("Expected alert %q, got %v", tt.alert, alerts)
			}
			if len(s.Memos()) != 0 {
				t.Errorf("No memo should be added, got %d", len(s.Memos()))
			}
		})
	}
}

func TestMemoSurface_ReopenAndRemove(t *testing.T) {
	s, view, _ := newTestMemoSurface(t, &fakeRecognizer{})
	defer s.Close()

	memo, _ := s.AddMemo("nap")
	s.CompleteMemo(memo.ID)

	if err := s.ReopenMemo(memo.ID); err != nil {
		t.Fatalf("ReopenMemo failed: %v", err)
	}
	if s.Memos()[0].Done {
		t.Error("Expected memo reopened")
	}
	if err := s.RemoveMemo(memo.ID); err != nil {
		t.Fatalf("RemoveMemo failed: %v", err)
	}
	if len(s.Memos()) != 0 {
		t.Error("Expected memo removed")
	}
	if err := s.RemoveMemo(memo.ID); !errors.Is(err, entities.ErrMemoNotFound) {
		t.Errorf("Expected ErrMemoNotFound, got %v", err)
	}
	if n := len(view.memos); n != 4 {
		t.Errorf("Expected 4 board updates, got %d", n)
	}
}
