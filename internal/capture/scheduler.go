package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orufy/signbridge/internal/camera"
	"github.com/orufy/signbridge/internal/encoder"
	"github.com/orufy/signbridge/internal/observability"
)

// FrameSender transmits an encoded frame. SendFrame must be safe for use
// from the send goroutine while Connected is polled from the tick loop.
type FrameSender interface {
	Connected() bool
	SendFrame(ctx context.Context, payload string, capturedAt time.Time) error
}

// Scheduler drives two independent periodic loops: a capture cadence that
// rasterizes the current camera frame into a latest-frame cache, and a send
// cadence that hands the cached frame to the protocol client. The cadences
// are decoupled so the outbound rate can sit below the visual frame rate.
//
// Backpressure policy: if a send is still in flight when the send tick
// fires, the tick is skipped and the frame dropped. Nothing is ever queued,
// which bounds both memory and end-to-end latency.
type Scheduler struct {
	enc     *encoder.Encoder
	sender  FrameSender
	metrics *observability.Metrics

	frameMu  sync.Mutex
	latest   string
	latestAt time.Time
	hasFrame bool

	// sending is the in-flight gate. The capture and send loops run on
	// separate goroutines, so this is a real atomic, not a re-entrancy flag.
	sending atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	src     camera.Source
}

func NewScheduler(enc *encoder.Encoder, sender FrameSender, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{enc: enc, sender: sender, metrics: metrics}
}

// Start begins the capture and send loops. The scheduler takes exclusive
// ownership of src and closes it on Stop.
func (s *Scheduler) Start(ctx context.Context, src camera.Source, captureRateHz, sendRateHz float64) error {
	if captureRateHz <= 0 || sendRateHz <= 0 {
		return fmt.Errorf("invalid rates: capture %.2f Hz, send %.2f Hz", captureRateHz, sendRateHz)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.src = src
	s.running = true
	s.hasFrame = false
	s.sending.Store(false)

	s.wg.Add(2)
	go s.captureLoop(runCtx, time.Duration(float64(time.Second)/captureRateHz))
	go s.sendLoop(runCtx, time.Duration(float64(time.Second)/sendRateHz))
	return nil
}

// Stop halts both loops, waits for any in-flight send and releases the
// camera source. Idempotent, and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.wg.Wait()
	if s.src != nil {
		if err := s.src.Close(); err != nil {
			log.Printf("capture: close camera source: %v", err)
		}
		s.src = nil
	}
	s.running = false
	s.frameMu.Lock()
	s.latest = ""
	s.hasFrame = false
	s.frameMu.Unlock()
}

func (s *Scheduler) captureLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := s.src.ReadFrame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("capture: read frame: %v", err)
				s.metrics.FramesDropped.WithLabelValues("read_failed").Inc()
				continue
			}
			payload, err := s.enc.EncodeFrame(img)
			if err != nil {
				// Encoding failures are skipped ticks, never loop exits.
				log.Printf("capture: encode frame: %v", err)
				s.metrics.FramesDropped.WithLabelValues("encode_failed").Inc()
				continue
			}
			s.frameMu.Lock()
			s.latest = payload
			s.latestAt = time.Now()
			s.hasFrame = true
			s.frameMu.Unlock()
			s.metrics.FramesCaptured.Inc()
		}
	}
}

func (s *Scheduler) sendLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.sender.Connected() {
				s.metrics.FramesDropped.WithLabelValues("not_connected").Inc()
				continue
			}
			if !s.sending.CompareAndSwap(false, true) {
				s.metrics.FramesDropped.WithLabelValues("send_in_flight").Inc()
				continue
			}

			s.frameMu.Lock()
			payload, capturedAt, ok := s.latest, s.latestAt, s.hasFrame
			s.frameMu.Unlock()
			if !ok {
				s.sending.Store(false)
				s.metrics.FramesDropped.WithLabelValues("no_frame").Inc()
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.sending.Store(false)
				start := time.Now()
				if err := s.sender.SendFrame(ctx, payload, capturedAt); err != nil {
					log.Printf("capture: send frame: %v", err)
					s.metrics.FramesDropped.WithLabelValues("send_failed").Inc()
					return
				}
				s.metrics.FramesSent.Inc()
				s.metrics.ObserveSendLatency(time.Since(start))
			}()
		}
	}
}
