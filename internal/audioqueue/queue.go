package audioqueue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orufy/signbridge/internal/observability"
)

// Item is one queued playback unit. Items are never merged or reordered.
type Item struct {
	ID      string
	Payload []byte
	Format  string
}

// Player renders one item and returns when playback finishes or fails. It
// must release any transient decode resources before returning and must
// honor ctx cancellation.
type Player interface {
	Play(ctx context.Context, item Item) error
}

// Queue serializes audio playback in strict FIFO order with at most one
// active playback at any time. A short fixed gap separates consecutive
// items to avoid artifacts from back-to-back playback starts. Playback
// errors discard the failed item and never stall the queue.
type Queue struct {
	player  Player
	gap     time.Duration
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	items  []Item
	active bool
	closed bool
	wg     sync.WaitGroup
}

const defaultGap = 150 * time.Millisecond

func NewQueue(player Player, gap time.Duration, metrics *observability.Metrics) *Queue {
	if gap <= 0 {
		gap = defaultGap
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{player: player, gap: gap, metrics: metrics, ctx: ctx, cancel: cancel}
}

// Enqueue appends an item and, if no playback is active, starts playback of
// the head immediately. Non-blocking and safe for concurrent use.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	q.items = append(q.items, item)
	q.metrics.AudioQueueDepth.Set(float64(len(q.items)))
	start := !q.active
	if start {
		q.active = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.run()
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain cancels any in-progress playback, discards pending items and waits
// for the playback goroutine to finish. The queue accepts nothing
// afterwards. Idempotent.
func (q *Queue) Drain() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.metrics.AudioQueueDepth.Set(0)
}

// run is the single playback goroutine; the active flag guarantees there is
// never more than one.
func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if q.closed || len(q.items) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.metrics.AudioQueueDepth.Set(float64(len(q.items)))
		q.mu.Unlock()

		if err := q.player.Play(q.ctx, item); err != nil {
			if q.ctx.Err() != nil {
				return
			}
			log.Printf("audioqueue: playback %s failed: %v", item.ID, err)
			q.metrics.AudioPlaybacks.WithLabelValues("error").Inc()
		} else {
			q.metrics.AudioPlaybacks.WithLabelValues("ok").Inc()
		}

		// Items may have arrived during playback; the gap applies to
		// whatever is pending now, not at pop time.
		q.mu.Lock()
		pending := len(q.items)
		q.mu.Unlock()
		if pending > 0 {
			select {
			case <-q.ctx.Done():
				return
			case <-time.After(q.gap):
			}
		}
	}
}
