package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orufy/signbridge/internal/audioqueue"
	"github.com/orufy/signbridge/internal/camera"
	"github.com/orufy/signbridge/internal/capture"
	"github.com/orufy/signbridge/internal/captions"
	"github.com/orufy/signbridge/internal/client"
	"github.com/orufy/signbridge/internal/encoder"
	"github.com/orufy/signbridge/internal/observability"
	"github.com/orufy/signbridge/internal/protocol"
	"github.com/orufy/signbridge/internal/reliability"
	"github.com/orufy/signbridge/internal/session"
)

// Callbacks surfaces pipeline events to the embedding application. All
// callbacks are optional and are invoked from the websocket read loop, so
// they must return quickly.
type Callbacks struct {
	OnCaption          func(captions.Snapshot)
	OnAudio            func(audioqueue.Item)
	OnError            func(evt protocol.ErrorEvent, severity reliability.Severity)
	OnConnectionChange func(connected bool)
}

// Config assembles the settings of one capture run.
type Config struct {
	ServiceURL        string
	Namespace         string
	SessionID         string
	UserID            string
	CaptureRateHz     float64
	SendRateHz        float64
	FrameWidth        int
	FrameHeight       int
	JPEGQuality       int
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	AudioGap          time.Duration

	OpenCamera camera.OpenFunc
	Player     audioqueue.Player
}

// Pipeline binds the camera, encoder, scheduler, protocol client, caption
// router and audio queue into one capture session. A pipeline is single
// use: once stopped (or failed fatally) it cannot be restarted, matching
// the terminal closed state of its session.
type Pipeline struct {
	cfg       Config
	metrics   *observability.Metrics
	callbacks Callbacks

	sess   *session.Session
	router *captions.Router
	queue  *audioqueue.Queue
	cli    *client.Client
	sched  *capture.Scheduler

	mu      sync.Mutex
	started bool

	stopOnce sync.Once
}

func New(cfg Config, metrics *observability.Metrics, callbacks Callbacks) *Pipeline {
	if cfg.OpenCamera == nil {
		cfg.OpenCamera = camera.OpenTestPattern
	}
	if cfg.Player == nil {
		cfg.Player = audioqueue.NopPlayer{}
	}

	sess := session.New(cfg.SessionID, cfg.UserID)
	p := &Pipeline{
		cfg:       cfg,
		metrics:   metrics,
		callbacks: callbacks,
		sess:      sess,
		router:    captions.NewRouter(),
		queue:     audioqueue.NewQueue(cfg.Player, cfg.AudioGap, metrics),
	}

	p.cli = client.New(client.Config{
		BaseURL:           cfg.ServiceURL,
		Namespace:         cfg.Namespace,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, sess, metrics)
	p.cli.RegisterHandler(protocol.TypeCaption, p.handleCaption)
	p.cli.RegisterHandler(protocol.TypeAudio, p.handleAudio)
	p.cli.RegisterHandler(protocol.TypeError, p.handleError)
	if callbacks.OnConnectionChange != nil {
		p.cli.OnConnectionChange(callbacks.OnConnectionChange)
	}

	enc := encoder.New(encoder.Options{
		Width:   cfg.FrameWidth,
		Height:  cfg.FrameHeight,
		Quality: cfg.JPEGQuality,
	})
	p.sched = capture.NewScheduler(enc, p.cli, metrics)
	return p
}

// Start opens the camera, connects to the recognition service and begins
// the capture loops. A camera that cannot be opened is fatal: the session
// closes and a CAMERA_FAILURE event is reported before Start returns.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already started")
	}
	p.started = true
	p.mu.Unlock()

	src, err := p.cfg.OpenCamera(ctx, camera.Config{
		Width:  p.cfg.FrameWidth,
		Height: p.cfg.FrameHeight,
		FPS:    int(p.cfg.CaptureRateHz),
	})
	if err != nil {
		p.reportLocalFatal(reliability.CodeCameraFailure, fmt.Sprintf("open camera: %v", err))
		p.Stop()
		return fmt.Errorf("open camera: %w", err)
	}

	if err := p.cli.Connect(ctx); err != nil {
		// Attempt exhaustion has already closed the session and emitted
		// its fatal event through the error handler.
		_ = src.Close()
		p.Stop()
		return err
	}

	if err := p.sched.Start(ctx, src, p.cfg.CaptureRateHz, p.cfg.SendRateHz); err != nil {
		_ = src.Close()
		p.Stop()
		return err
	}
	return nil
}

// Stop tears the whole pipeline down in dependency order: no new frames,
// then the connection, then pending audio. Idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.sched.Stop()
		if err := p.cli.Close(); err != nil {
			log.Printf("pipeline: close client: %v", err)
		}
		p.queue.Drain()
	})
}

// Session returns a point-in-time view of the session for diagnostics.
func (p *Pipeline) Session() session.Snapshot {
	return p.sess.Snapshot()
}

// Captions returns the current caption buffers.
func (p *Pipeline) Captions() captions.Snapshot {
	return p.router.Snapshot()
}

func (p *Pipeline) handleCaption(msg any) {
	c, ok := msg.(protocol.Caption)
	if !ok {
		return
	}
	snap := p.router.Apply(c)
	if p.callbacks.OnCaption != nil {
		p.callbacks.OnCaption(snap)
	}
}

func (p *Pipeline) handleAudio(msg any) {
	a, ok := msg.(protocol.Audio)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(a.DataBase64)
	if err != nil {
		log.Printf("pipeline: audio payload decode: %v", err)
		p.metrics.AudioPlaybacks.WithLabelValues("decode_failed").Inc()
		return
	}
	item := audioqueue.Item{
		ID:      uuid.NewString(),
		Payload: data,
		Format:  a.Format,
	}
	p.queue.Enqueue(item)
	if p.callbacks.OnAudio != nil {
		p.callbacks.OnAudio(item)
	}
}

func (p *Pipeline) handleError(msg any) {
	evt, ok := msg.(protocol.ErrorEvent)
	if !ok {
		return
	}
	severity := reliability.ClassifyEvent(evt.Code, evt.Severity)
	p.metrics.ServiceErrors.WithLabelValues(evt.Code, string(severity)).Inc()
	log.Printf("pipeline: service error %s (%s): %s", evt.Code, severity, evt.Message)

	if p.callbacks.OnError != nil {
		p.callbacks.OnError(evt, severity)
	}
	if severity == reliability.SeverityFatal {
		// Stop from a fresh goroutine: the read loop that delivered this
		// event must not block on its own teardown.
		go p.Stop()
	}
}

// reportLocalFatal routes a locally raised failure through the same error
// path as service-sent events.
func (p *Pipeline) reportLocalFatal(code, message string) {
	evt := protocol.ErrorEvent{
		Type:        protocol.TypeError,
		Code:        code,
		Message:     message,
		Severity:    string(reliability.SeverityFatal),
		TimestampMS: time.Now().UnixMilli(),
	}
	p.metrics.ServiceErrors.WithLabelValues(code, string(reliability.SeverityFatal)).Inc()
	if p.callbacks.OnError != nil {
		p.callbacks.OnError(evt, reliability.SeverityFatal)
	}
}
