package websocket

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/internal/chat"
	"github.com/satriahrh/supermom/internal/metrics"
	"github.com/satriahrh/supermom/usecase"
)

type fakeAssistant struct {
	transcript   string
	recognizeErr error
	replyErr     error
}

func (a *fakeAssistant) Recognize(ctx context.Context, payload string) (string, error) {
	return a.transcript, a.recognizeErr
}

func (a *fakeAssistant) Reply(ctx context.Context, chatType domain.ChatType, userText string) (usecase.Reply, error) {
	if a.replyErr != nil {
		return usecase.Reply{}, a.replyErr
	}
	return usecase.Reply{Text: string(chatType) + ": " + userText, Audio: "SUQz"}, nil
}

func (a *fakeAssistant) Praise(ctx context.Context, memoText string) (usecase.Reply, error) {
	if a.replyErr != nil {
		return usecase.Reply{}, a.replyErr
	}
	return usecase.Reply{Text: "Well done on " + memoText, Audio: "SUQz"}, nil
}

func setupTestHub(t testing.TB, assistant Assistant) *Hub {
	t.Helper()
	hub := NewHub(assistant, metrics.NewMetrics(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// newTestClient builds a client without a connection, for exercising
// processMessage directly
func newTestClient(hub *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 16),
		id:     "test-client",
		logger: zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func nextFrame(t *testing.T, c *Client) domain.InboundMessage {
	t.Helper()
	select {
	case payload := <-c.send:
		var msg domain.InboundMessage
		if err := sonic.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("Failed to unmarshal frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("Frame not received within timeout")
	}
	return domain.InboundMessage{}
}

func TestClient_VoiceChatSequence(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{transcript: "I feel tired"})
	client := newTestClient(hub)

	client.processMessage([]byte(`{"type":"voice_chat","chat_type":"emotional_support","audio":"AAAA"}`))

	recognized := nextFrame(t, client)
	if recognized.Type != domain.MessageTypeUserTextRecognized || recognized.UserText != "I feel tired" {
		t.Errorf("Expected recognized frame first, got %+v", recognized)
	}
	if recognized.ChatType != domain.ChatTypeEmotionalSupport {
		t.Errorf("Expected chat type echoed, got %s", recognized.ChatType)
	}

	reply := nextFrame(t, client)
	if reply.Type != domain.MessageTypeVoiceResponse || reply.Error {
		t.Fatalf("Expected voice_response, got %+v", reply)
	}
	if reply.UserText != "I feel tired" || reply.ResponseText != "emotional_support: I feel tired" || reply.Audio != "SUQz" {
		t.Errorf("Unexpected reply %+v", reply)
	}

	if got := testutil.ToFloat64(hub.metrics.MessagesReceived.WithLabelValues("voice_chat")); got != 1 {
		t.Errorf("Expected 1 voice_chat counted, got %f", got)
	}
}

func TestClient_TextChatAndPraise(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{})
	client := newTestClient(hub)

	client.processMessage([]byte(`{"type":"text_chat","chat_type":"nutrition_advisor","text":"lunch ideas"}`))
	reply := nextFrame(t, client)
	if reply.Type != domain.MessageTypeTextResponse || reply.UserText != "lunch ideas" {
		t.Errorf("Unexpected text reply %+v", reply)
	}
	if reply.ResponseText != "nutrition_advisor: lunch ideas" {
		t.Errorf("Unexpected response text %q", reply.ResponseText)
	}

	client.processMessage([]byte(`{"type":"memo_complete","memo_text":"sterilize bottles"}`))
	praise := nextFrame(t, client)
	if praise.Type != domain.MessageTypeMemoPraise || praise.PraiseText != "Well done on sterilize bottles" {
		t.Errorf("Unexpected praise %+v", praise)
	}
}

func TestClient_ErrorFrames(t *testing.T) {
	tests := []struct {
		name      string
		assistant *fakeAssistant
		message   string
		wantType  domain.MessageType
		wantText  string
	}{
		{
			name:      "invalid json",
			assistant: &fakeAssistant{},
			message:   `{invalid json}`,
			wantText:  "invalid JSON",
		},
		{
			name:      "unknown message type",
			assistant: &fakeAssistant{},
			message:   `{"type":"dance"}`,
			wantText:  "unknown message type: dance",
		},
		{
			name:      "unknown chat type",
			assistant: &fakeAssistant{},
			message:   `{"type":"text_chat","chat_type":"astrologer","text":"hi"}`,
			wantText:  "unknown chat type: astrologer",
		},
		{
			name:      "recognition failure",
			assistant: &fakeAssistant{recognizeErr: errors.New("quota")},
			message:   `{"type":"voice_chat","chat_type":"nutrition_advisor","audio":"AAAA"}`,
			wantType:  domain.MessageTypeVoiceResponse,
			wantText:  "speech recognition failed: quota",
		},
		{
			name:      "nothing recognized",
			assistant: &fakeAssistant{},
			message:   `{"type":"voice_chat","chat_type":"nutrition_advisor","audio":"AAAA"}`,
			wantType:  domain.MessageTypeVoiceResponse,
			wantText:  "no speech detected",
		},
		{
			name:      "text reply failure",
			assistant: &fakeAssistant{replyErr: errors.New("model overloaded")},
			message:   `{"type":"text_chat","chat_type":"nutrition_advisor","text":"hi"}`,
			wantType:  domain.MessageTypeTextResponse,
			wantText:  "model overloaded",
		},
		{
			name:      "praise failure",
			assistant: &fakeAssistant{replyErr: errors.New("model overloaded")},
			message:   `{"type":"memo_complete","memo_text":"nap"}`,
			wantType:  domain.MessageTypeMemoPraise,
			wantText:  "model overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := setupTestHub(t, tt.assistant)
			client := newTestClient(hub)

			client.processMessage([]byte(tt.message))
			frame := nextFrame(t, client)

			if !frame.Error {
				t.Fatalf("Expected error frame, got %+v", frame)
			}
			if frame.Type != tt.wantType {
				t.Errorf("Expected type %q, got %q", tt.wantType, frame.Type)
			}
			if !strings.Contains(frame.Message, tt.wantText) {
				t.Errorf("Expected message containing %q, got %q", tt.wantText, frame.Message)
			}
			if len(client.send) != 0 {
				t.Errorf("Expected exactly one frame, %d more queued", len(client.send))
			}
		})
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{})

	clients := make([]*Client, 10)
	for i := range clients {
		clients[i] = newTestClient(hub)
		clients[i].id = string(rune('a' + i))
		hub.register <- clients[i]
	}

	waitForCount(t, hub, 10)
	if got := testutil.ToFloat64(hub.metrics.ActiveConnections); got != 10 {
		t.Errorf("Expected gauge 10, got %f", got)
	}

	for _, c := range clients {
		hub.unregister <- c
	}
	waitForCount(t, hub, 0)

	for _, c := range clients {
		if c.ctx.Err() == nil {
			t.Error("Expected unregistered client to be cancelled")
		}
	}
}

func TestHub_ReconnectReplacesClient(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{})

	first := newTestClient(hub)
	second := newTestClient(hub)
	hub.register <- first
	hub.register <- second
	waitForCount(t, hub, 1)

	if first.ctx.Err() == nil {
		t.Error("Expected the replaced client to be cancelled")
	}

	// The stale connection going away must not drop the new one
	hub.unregister <- first
	if hub.ClientCount() != 1 {
		t.Fatalf("Expected the new client to stay registered, got %d", hub.ClientCount())
	}
	if second.ctx.Err() != nil {
		t.Error("Expected the new client to stay active")
	}

	hub.unregister <- second
	waitForCount(t, hub, 0)

	if got := testutil.ToFloat64(hub.metrics.ActiveConnections); got != 0 {
		t.Errorf("Expected gauge 0, got %f", got)
	}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []chat.Event
	got    chan struct{}
}

func (r *eventRecorder) HandleEvent(e chat.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *eventRecorder) HandleClose(error) {}

func TestHub_EndToEndWithChatClient(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{transcript: "what is good for iron"})

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, "")
	})
	server := httptest.NewServer(e)
	defer server.Close()

	recorder := &eventRecorder{got: make(chan struct{}, 4)}
	client := chat.NewClient("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", recorder, zap.NewNop())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	msg, _ := domain.NewVoiceChat(domain.ChatTypeNutritionAdvisor, "AAAA")
	if err := client.Send(msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-recorder.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for event %d", i+1)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if _, ok := recorder.events[0].(chat.RecognizedEvent); !ok {
		t.Errorf("Expected RecognizedEvent first, got %T", recorder.events[0])
	}
	reply, ok := recorder.events[1].(chat.ReplyEvent)
	if !ok || reply.ResponseText != "nutrition_advisor: what is good for iron" {
		t.Errorf("Unexpected reply %#v", recorder.events[1])
	}
	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 registered client, got %d", hub.ClientCount())
	}
}

func TestHandleWebSocket_RejectsPlainHTTP(t *testing.T) {
	hub := setupTestHub(t, &fakeAssistant{})

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, "")
	})
	server := httptest.NewServer(e)
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("Expected 400 for non-upgrade request, got %d", resp.StatusCode)
	}

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/nope", nil)
	if err == nil {
		t.Error("Expected dial to unknown path to fail")
	}
}
