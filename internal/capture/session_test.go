package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
)

// fakeStream hands out preloaded chunks, then blocks until closed
type fakeStream struct {
	format  repositories.StreamFormat
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	drained chan struct{}
	closed  chan struct{}
	once    sync.Once
	closes  int
}

func newFakeStream(chunks [][]byte) *fakeStream {
	return &fakeStream{
		format:  repositories.StreamFormat{MimeType: audio.MimePCM, SampleRate: 16000, Channels: 1},
		chunks:  chunks,
		drained: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (f *fakeStream) Format() repositories.StreamFormat { return f.format }

func (f *fakeStream) ReadChunk() ([]byte, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return chunk, nil
	}
	readErr := f.readErr
	f.mu.Unlock()

	f.once.Do(func() { close(f.drained) })
	if readErr != nil {
		return nil, readErr
	}
	<-f.closed
	return nil, io.EOF
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeStream) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeMic struct {
	mu          sync.Mutex
	streams     []*fakeStream
	err         error
	opens       int
	constraints repositories.CaptureConstraints
}

func (m *fakeMic) Open(ctx context.Context, c repositories.CaptureConstraints) (repositories.MicrophoneStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.constraints = c
	stream := m.streams[m.opens]
	m.opens++
	return stream, nil
}

func pcmChunks(seconds float64, chunkBytes int) [][]byte {
	total := int(seconds*audio.BytesPerSecond) &^ 1
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i * 7)
	}
	var chunks [][]byte
	for start := 0; start < len(data); start += chunkBytes {
		end := start + chunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

type recorder struct {
	mu    sync.Mutex
	blobs []audio.Blob
	err   error
	gate  chan struct{}
}

func (r *recorder) pipeline(ctx context.Context, blob audio.Blob) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs = append(r.blobs, blob)
	return r.err
}

func TestSession_StartStop(t *testing.T) {
	stream := newFakeStream(pcmChunks(2, 4096))
	mic := &fakeMic{streams: []*fakeStream{stream}}
	rec := &recorder{}
	errs := make(chan error, 4)

	s := NewSession(mic, rec.pipeline, zaptest.NewLogger(t), WithErrorHandler(func(err error) { errs <- err }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.State() != StateRecording {
		t.Fatalf("Expected state recording, got %s", s.State())
	}
	if mic.constraints != repositories.DefaultCaptureConstraints() {
		t.Errorf("Expected default constraints, got %+v", mic.constraints)
	}

	<-stream.drained
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected state idle after stop, got %s", s.State())
	}
	if stream.closeCount() != 1 {
		t.Errorf("Expected device released once, got %d", stream.closeCount())
	}

	s.Wait()

	select {
	case err := <-errs:
		t.Fatalf("Unexpected error: %v", err)
	default:
	}

	if len(rec.blobs) != 1 {
		t.Fatalf("Expected one recording, got %d", len(rec.blobs))
	}
	if rec.blobs[0].MimeType != audio.MimeWAV {
		t.Errorf("Expected raw PCM wrapped as %s, got %s", audio.MimeWAV, rec.blobs[0].MimeType)
	}

	pcm, err := audio.NewTranscoder(zaptest.NewLogger(t)).Transcode(context.Background(), rec.blobs[0])
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if n := len(pcm); n < 31999 || n > 32001 {
		t.Errorf("Expected about 32000 samples for 2s, got %d", n)
	}
}

func TestSession_StartWhileRecordingIsNoop(t *testing.T) {
	stream := newFakeStream(nil)
	mic := &fakeMic{streams: []*fakeStream{stream}}
	s := NewSession(mic, (&recorder{}).pipeline, zaptest.NewLogger(t))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Second start should be a no-op, got %v", err)
	}
	if mic.opens != 1 {
		t.Errorf("Expected microphone opened once, got %d", mic.opens)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSession_DeviceUnavailable(t *testing.T) {
	mic := &fakeMic{err: errors.New("permission denied")}
	s := NewSession(mic, (&recorder{}).pipeline, zaptest.NewLogger(t))

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected state idle, got %s", s.State())
	}
}

func TestSession_StopWhenIdle(t *testing.T) {
	s := NewSession(&fakeMic{}, (&recorder{}).pipeline, zaptest.NewLogger(t))
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
}

func TestSession_EmptyRecording(t *testing.T) {
	stream := newFakeStream(nil)
	mic := &fakeMic{streams: []*fakeStream{stream}}
	rec := &recorder{}
	errs := make(chan error, 1)
	s := NewSession(mic, rec.pipeline, zaptest.NewLogger(t), WithErrorHandler(func(err error) { errs <- err }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	s.Wait()

	select {
	case err := <-errs:
		if !errors.Is(err, audio.ErrEmptyRecording) {
			t.Errorf("Expected ErrEmptyRecording, got %v", err)
		}
	default:
		t.Fatal("Expected an error to be reported")
	}
	if len(rec.blobs) != 0 {
		t.Errorf("Pipeline should not run for an empty recording, ran %d times", len(rec.blobs))
	}
}

func TestSession_DeviceReleasedWhenPipelineFails(t *testing.T) {
	stream := newFakeStream(pcmChunks(0.1, 1024))
	mic := &fakeMic{streams: []*fakeStream{stream}}
	rec := &recorder{err: errors.New("send failed")}
	errs := make(chan error, 1)
	s := NewSession(mic, rec.pipeline, zaptest.NewLogger(t), WithErrorHandler(func(err error) { errs <- err }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-stream.drained
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	s.Wait()

	if stream.closeCount() != 1 {
		t.Errorf("Expected device released once, got %d", stream.closeCount())
	}
	select {
	case err := <-errs:
		if err.Error() != "send failed" {
			t.Errorf("Expected pipeline error, got %v", err)
		}
	default:
		t.Fatal("Expected pipeline error to be reported")
	}
	if s.State() != StateIdle {
		t.Errorf("Expected state idle, got %s", s.State())
	}
}

func TestSession_StartWhileFinalizing(t *testing.T) {
	first := newFakeStream(pcmChunks(0.1, 1024))
	second := newFakeStream(nil)
	mic := &fakeMic{streams: []*fakeStream{first, second}}
	rec := &recorder{gate: make(chan struct{})}
	s := NewSession(mic, rec.pipeline, zaptest.NewLogger(t))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-first.drained

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	cancel()

	if err := s.Start(context.Background()); !errors.Is(err, ErrFinalizing) {
		t.Fatalf("Expected ErrFinalizing, got %v", err)
	}

	close(rec.gate)
	s.Wait()

	if len(rec.blobs) != 1 {
		t.Fatalf("Expected pipeline to complete despite cancelled stop context, got %d runs", len(rec.blobs))
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start after finalizing failed: %v", err)
	}
	_ = s.Close()
}

func TestSession_BufferOverflow(t *testing.T) {
	stream := newFakeStream([][]byte{make([]byte, 8), make([]byte, 8)})
	mic := &fakeMic{streams: []*fakeStream{stream}}
	errs := make(chan error, 1)
	s := NewSession(mic, (&recorder{}).pipeline, zaptest.NewLogger(t),
		WithMaxBytes(10),
		WithErrorHandler(func(err error) { errs <- err }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, ErrBufferFull) {
			t.Errorf("Expected ErrBufferFull, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for overflow")
	}

	if s.State() != StateError {
		t.Errorf("Expected state error, got %s", s.State())
	}
	if stream.closeCount() != 1 {
		t.Errorf("Expected device released once, got %d", stream.closeCount())
	}
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording after failure, got %v", err)
	}
}

func TestSession_ReadError(t *testing.T) {
	stream := newFakeStream(nil)
	stream.readErr = errors.New("device unplugged")
	second := newFakeStream(nil)
	mic := &fakeMic{streams: []*fakeStream{stream, second}}
	errs := make(chan error, 1)
	s := NewSession(mic, (&recorder{}).pipeline, zaptest.NewLogger(t), WithErrorHandler(func(err error) { errs <- err }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for read error")
	}
	if s.State() != StateError {
		t.Errorf("Expected state error, got %s", s.State())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start should recover from error state, got %v", err)
	}
	if s.State() != StateRecording {
		t.Errorf("Expected state recording, got %s", s.State())
	}
	_ = s.Close()
}

func TestChunkBuffer(t *testing.T) {
	b := newChunkBuffer(6)
	chunk := []byte{1, 2, 3}
	if err := b.Append(chunk); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	chunk[0] = 9
	if err := b.Append([]byte{4, 5, 6}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := b.Append([]byte{7}); !errors.Is(err, ErrBufferFull) {
		t.Errorf("Expected ErrBufferFull, got %v", err)
	}

	got := b.Flush()
	want := []byte{1, 2, 3, 4, 5, 6}
	if string(got) != string(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if b.Size() != 0 || b.Flush() != nil {
		t.Error("Expected empty buffer after flush")
	}
}
