package captions

import (
	"reflect"
	"testing"

	"github.com/orufy/signbridge/internal/protocol"
)

func caption(level protocol.CaptionLevel, text string) protocol.Caption {
	return protocol.Caption{Type: protocol.TypeCaption, Level: level, Text: text, Confidence: 1}
}

func TestLiveReplacesLiveBuffer(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelLive, "H"))
	r.Apply(caption(protocol.LevelLive, "HE"))
	snap := r.Apply(caption(protocol.LevelLive, "HEL"))

	if snap.Live != "HEL" {
		t.Fatalf("live = %q, want HEL", snap.Live)
	}
	if len(snap.Words) != 0 || len(snap.History) != 0 {
		t.Fatalf("unexpected buffers: %+v", snap)
	}
}

func TestWordReplacesWordsAndClearsLive(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelLive, "WOR"))
	r.Apply(caption(protocol.LevelWord, "HELLO"))
	snap := r.Apply(caption(protocol.LevelWord, "HELLO WORLD"))

	if !reflect.DeepEqual(snap.Words, []string{"HELLO", "WORLD"}) {
		t.Fatalf("words = %v, want [HELLO WORLD]", snap.Words)
	}
	if snap.Live != "" {
		t.Fatalf("live = %q, want empty after word confirmation", snap.Live)
	}
}

func TestSentencePromotesJoinedWords(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelLive, "WORL"))
	r.Apply(caption(protocol.LevelWord, "HELLO WORLD"))
	snap := r.Apply(caption(protocol.LevelSentence, "ignored by promotion"))

	if !reflect.DeepEqual(snap.History, []string{"HELLO WORLD"}) {
		t.Fatalf("history = %v, want [HELLO WORLD]", snap.History)
	}
	if snap.Live != "" || len(snap.Words) != 0 {
		t.Fatalf("buffers not cleared after sentence: %+v", snap)
	}
}

func TestSentenceFallsBackToOwnText(t *testing.T) {
	r := NewRouter()
	snap := r.Apply(caption(protocol.LevelSentence, "THANK YOU"))

	if !reflect.DeepEqual(snap.History, []string{"THANK YOU"}) {
		t.Fatalf("history = %v, want [THANK YOU]", snap.History)
	}
}

func TestConsecutiveIdenticalSentencesBothAppend(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelSentence, "YES"))
	snap := r.Apply(caption(protocol.LevelSentence, "YES"))

	if !reflect.DeepEqual(snap.History, []string{"YES", "YES"}) {
		t.Fatalf("history = %v, want [YES YES] without deduplication", snap.History)
	}
}

func TestEmptySentenceWithEmptyWordsAppendsNothing(t *testing.T) {
	r := NewRouter()
	snap := r.Apply(caption(protocol.LevelSentence, ""))
	if len(snap.History) != 0 {
		t.Fatalf("history = %v, want empty", snap.History)
	}
}

func TestFullPromotionCycleReturnsToIdle(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelLive, "H"))
	r.Apply(caption(protocol.LevelWord, "HI"))
	r.Apply(caption(protocol.LevelSentence, ""))
	r.Apply(caption(protocol.LevelLive, "B"))
	r.Apply(caption(protocol.LevelWord, "BYE NOW"))
	snap := r.Apply(caption(protocol.LevelSentence, ""))

	if !reflect.DeepEqual(snap.History, []string{"HI", "BYE NOW"}) {
		t.Fatalf("history = %v, want [HI, BYE NOW]", snap.History)
	}
	if snap.Live != "" || len(snap.Words) != 0 {
		t.Fatalf("not idle after promotion: %+v", snap)
	}
}

func TestResetClearsBuffersAndReturnsHistory(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelSentence, "ONE"))
	r.Apply(caption(protocol.LevelLive, "TW"))

	history := r.Reset()
	if !reflect.DeepEqual(history, []string{"ONE"}) {
		t.Fatalf("Reset() = %v, want [ONE]", history)
	}
	snap := r.Snapshot()
	if snap.Live != "" || len(snap.Words) != 0 || len(snap.History) != 0 {
		t.Fatalf("buffers survive Reset: %+v", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRouter()
	r.Apply(caption(protocol.LevelWord, "HELLO"))
	snap := r.Snapshot()
	snap.Words[0] = "MUTATED"

	if got := r.Snapshot().Words[0]; got != "HELLO" {
		t.Fatalf("internal buffer mutated through snapshot: %q", got)
	}
}
