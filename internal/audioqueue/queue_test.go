package audioqueue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orufy/signbridge/internal/observability"
)

type recordingPlayer struct {
	mu       sync.Mutex
	played   []string
	delay    time.Duration
	failIDs  map[string]bool
	active   atomic.Int32
	overlaps atomic.Int32
}

func (p *recordingPlayer) Play(ctx context.Context, item Item) error {
	if p.active.Add(1) > 1 {
		p.overlaps.Add(1)
	}
	defer p.active.Add(-1)

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	p.mu.Lock()
	p.played = append(p.played, item.ID)
	p.mu.Unlock()

	if p.failIDs[item.ID] {
		return errors.New("simulated playback failure")
	}
	return nil
}

func (p *recordingPlayer) playedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics("test_audioqueue_" + strconv.FormatInt(time.Now().UnixNano(), 10))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestPlaybackOrderIsFIFO(t *testing.T) {
	player := &recordingPlayer{delay: 10 * time.Millisecond}
	q := NewQueue(player, 5*time.Millisecond, testMetrics(t))
	defer q.Drain()

	want := []string{"a", "b", "c", "d", "e"}
	for _, id := range want {
		q.Enqueue(Item{ID: id, Payload: []byte{1}, Format: "mp3"})
	}

	waitFor(t, 2*time.Second, func() bool { return len(player.playedIDs()) == len(want) })
	got := player.playedIDs()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playback order = %v, want %v", got, want)
		}
	}
	if n := player.overlaps.Load(); n != 0 {
		t.Fatalf("observed %d overlapping playbacks, want 0", n)
	}
}

func TestConcurrentEnqueueNeverOverlaps(t *testing.T) {
	player := &recordingPlayer{delay: 2 * time.Millisecond}
	q := NewQueue(player, time.Millisecond, testMetrics(t))
	defer q.Drain()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				q.Enqueue(Item{Payload: []byte{1}, Format: "mp3"})
			}
		}()
	}
	wg.Wait()

	waitFor(t, 3*time.Second, func() bool { return len(player.playedIDs()) == 40 })
	if n := player.overlaps.Load(); n != 0 {
		t.Fatalf("observed %d overlapping playbacks, want 0", n)
	}
}

type timingPlayer struct {
	delay time.Duration

	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
}

func (p *timingPlayer) Play(ctx context.Context, item Item) error {
	p.mu.Lock()
	p.starts[item.ID] = time.Now()
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
	}

	p.mu.Lock()
	p.ends[item.ID] = time.Now()
	p.mu.Unlock()
	return nil
}

func TestGapAppliesToItemsEnqueuedDuringPlayback(t *testing.T) {
	const gap = 100 * time.Millisecond
	player := &timingPlayer{
		delay:  150 * time.Millisecond,
		starts: map[string]time.Time{},
		ends:   map[string]time.Time{},
	}
	q := NewQueue(player, gap, testMetrics(t))
	defer q.Drain()

	// "b" arrives while "a" plays, so the queue was empty when "a" was
	// popped. The gap must still separate the two playbacks.
	q.Enqueue(Item{ID: "a", Payload: []byte{1}, Format: "mp3"})
	time.Sleep(50 * time.Millisecond)
	q.Enqueue(Item{ID: "b", Payload: []byte{1}, Format: "mp3"})

	waitFor(t, 2*time.Second, func() bool {
		player.mu.Lock()
		defer player.mu.Unlock()
		return !player.ends["b"].IsZero()
	})

	player.mu.Lock()
	aEnd, bStart := player.ends["a"], player.starts["b"]
	player.mu.Unlock()
	if got := bStart.Sub(aEnd); got < gap {
		t.Fatalf("inter-item gap = %v, want >= %v", got, gap)
	}
}

func TestPlaybackErrorDoesNotStallQueue(t *testing.T) {
	player := &recordingPlayer{failIDs: map[string]bool{"bad": true}}
	q := NewQueue(player, time.Millisecond, testMetrics(t))
	defer q.Drain()

	q.Enqueue(Item{ID: "bad", Payload: []byte{1}, Format: "mp3"})
	q.Enqueue(Item{ID: "good", Payload: []byte{1}, Format: "mp3"})

	waitFor(t, 2*time.Second, func() bool { return len(player.playedIDs()) == 2 })
	got := player.playedIDs()
	if got[0] != "bad" || got[1] != "good" {
		t.Fatalf("playback order = %v, want [bad good]", got)
	}
}

func TestDrainCancelsActivePlayback(t *testing.T) {
	player := &recordingPlayer{delay: 5 * time.Second}
	q := NewQueue(player, time.Millisecond, testMetrics(t))

	q.Enqueue(Item{ID: "long", Payload: []byte{1}, Format: "mp3"})
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		q.Drain()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Drain() did not cancel in-progress playback")
	}

	// Enqueue after Drain is a no-op.
	q.Enqueue(Item{ID: "late", Payload: []byte{1}, Format: "mp3"})
	if q.Len() != 0 {
		t.Fatalf("queue accepted item after Drain")
	}
}

func TestDrainIdempotent(t *testing.T) {
	q := NewQueue(&recordingPlayer{}, time.Millisecond, testMetrics(t))
	q.Drain()
	q.Drain()
}

func TestEnqueueAssignsID(t *testing.T) {
	player := &recordingPlayer{}
	q := NewQueue(player, time.Millisecond, testMetrics(t))
	defer q.Drain()

	q.Enqueue(Item{Payload: []byte{1}, Format: "mp3"})
	waitFor(t, time.Second, func() bool { return len(player.playedIDs()) == 1 })
	if player.playedIDs()[0] == "" {
		t.Fatalf("item played without generated id")
	}
}
