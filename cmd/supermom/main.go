package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/adapters/backend"
	"github.com/satriahrh/supermom/adapters/device"
	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/capture"
	"github.com/satriahrh/supermom/internal/chat"
	"github.com/satriahrh/supermom/internal/codec"
	"github.com/satriahrh/supermom/internal/config"
	"github.com/satriahrh/supermom/internal/logger"
	"github.com/satriahrh/supermom/internal/playback"
	"github.com/satriahrh/supermom/usecase"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	surfaceName := flag.String("surface", "", "surface to open: food, talk or memo")
	flag.Parse()

	if err := run(*configPath, *surfaceName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, surfaceName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if surfaceName == "" {
		surfaceName = cfg.Client.Surface
	}
	surface, err := domain.ParseSurface(surfaceName)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := device.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio devices: %w", err)
	}
	defer device.Terminate()

	view := newConsoleView(os.Stdout)
	encoder := codec.NewEncoder(cfg.Client.ChunkSize)
	transcoder := audio.NewTranscoder(log)
	player := playback.NewPlayer(device.NewSpeakerFactory(cfg.Client.OutputSampleRate, log), encoder, log)
	api := backend.NewClient(cfg.Client.APIURL, encoder, log, backend.WithBearerToken(cfg.Client.Token))
	open := channelFactory(cfg.Client.ChannelURL, cfg.Client.Token, log)

	r := &repl{
		out:   os.Stdout,
		chime: usecase.NewTimerChime(api, player, log),
	}

	var pipeline capture.Pipeline
	var closeSurface func() error
	if surface == domain.SurfaceMemo {
		memo := usecase.NewMemoSurface(transcoder, api, player, view, log,
			usecase.WithBannerDuration(cfg.Client.BannerDuration))
		r.memo = memo
		r.connect = func(ctx context.Context) error { return memo.Connect(ctx, open) }
		pipeline = memo.RecordingPipeline
		closeSurface = memo.Close
	} else {
		chatSurface, err := usecase.NewChatSurface(surface, transcoder, encoder, player, view, log)
		if err != nil {
			return err
		}
		r.chat = chatSurface
		r.connect = func(ctx context.Context) error { return chatSurface.Connect(ctx, open) }
		pipeline = chatSurface.SendRecording
		closeSurface = chatSurface.Close
	}
	defer closeSurface()

	// Surfaces alert their own pipeline failures, so only capture errors
	// reach the handler.
	send := func(ctx context.Context, blob audio.Blob) error {
		_ = pipeline(ctx, blob)
		return nil
	}
	session := capture.NewSession(device.NewMicrophone(log), send, log,
		capture.WithMaxBytes(cfg.Client.MaxRecordingBytes),
		capture.WithErrorHandler(func(err error) {
			view.Alert(surface, usecase.AlertFor(err))
		}))
	defer session.Close()
	r.capture = session

	if err := r.connect(ctx); err != nil {
		view.Alert(surface, usecase.AlertConnectionLost)
		log.Warn("Initial connect failed, use /reconnect", zap.Error(err))
	}

	fmt.Fprintf(os.Stdout, "supermom %s surface, /help for commands\n", surface)
	return loop(ctx, r, view, surface)
}

func loop(ctx context.Context, r *repl, view *consoleView, surface domain.Surface) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.handleLine(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err == nil {
				continue
			}
			if text := alertText(err); text != "" {
				view.Alert(surface, text)
			}
		}
	}
}

func channelFactory(url, token string, log *zap.Logger) usecase.ChannelFactory {
	return func(ctx context.Context, handler chat.Handler) (usecase.Channel, error) {
		client := chat.NewClient(url, handler, log, chat.WithBearerToken(token))
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", chat.ErrNotConnected, err)
		}
		return client, nil
	}
}
