package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/orufy/signbridge/internal/audioqueue"
	"github.com/orufy/signbridge/internal/captions"
	"github.com/orufy/signbridge/internal/config"
	"github.com/orufy/signbridge/internal/corrections"
	"github.com/orufy/signbridge/internal/httpapi"
	"github.com/orufy/signbridge/internal/observability"
	"github.com/orufy/signbridge/internal/pipeline"
	"github.com/orufy/signbridge/internal/protocol"
	"github.com/orufy/signbridge/internal/reliability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := corrections.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("corrections store init failed: %v", err)
	}
	defer store.Close()

	var player audioqueue.Player
	if strings.TrimSpace(cfg.AudioPlayer) == "" {
		player = audioqueue.NopPlayer{}
		log.Printf("audio player: none (set SIGNBRIDGE_AUDIO_PLAYER to enable playback)")
	} else {
		player, err = audioqueue.NewExecPlayer(cfg.AudioPlayer)
		if err != nil {
			log.Fatalf("audio player init failed: %v", err)
		}
		log.Printf("audio player: %s", cfg.AudioPlayer)
	}

	userID := cfg.UserID
	if userID == "" {
		userID = "anonymous"
	}

	fatalCh := make(chan struct{}, 1)
	p := pipeline.New(pipeline.Config{
		ServiceURL:        cfg.ServiceURL,
		Namespace:         cfg.ServiceNamespace,
		UserID:            userID,
		CaptureRateHz:     cfg.CaptureRateHz,
		SendRateHz:        cfg.SendRateHz,
		FrameWidth:        cfg.FrameWidth,
		FrameHeight:       cfg.FrameHeight,
		JPEGQuality:       cfg.JPEGQuality,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		AudioGap:          cfg.AudioGap,
		Player:            player,
	}, metrics, pipeline.Callbacks{
		OnCaption: func(snap captions.Snapshot) {
			if snap.Live != "" {
				log.Printf("caption live: %s", snap.Live)
			}
			if n := len(snap.History); n > 0 {
				log.Printf("caption sentence: %s", snap.History[n-1])
			}
		},
		OnError: func(evt protocol.ErrorEvent, severity reliability.Severity) {
			if severity == reliability.SeverityFatal {
				select {
				case fatalCh <- struct{}{}:
				default:
				}
			}
		},
		OnConnectionChange: func(connected bool) {
			log.Printf("connection state: connected=%v", connected)
		},
	})

	if err := p.Start(ctx); err != nil {
		log.Fatalf("pipeline start failed: %v", err)
	}
	defer p.Stop()

	api := httpapi.New(cfg, p, store, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("diagnostics listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Printf("shutdown signal received")
	case <-fatalCh:
		log.Printf("fatal session error, shutting down")
	}

	p.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
