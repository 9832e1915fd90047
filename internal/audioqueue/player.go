package audioqueue

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/orufy/signbridge/internal/audio"
)

// ExecPlayer shells out to an external audio command (ffplay, mpg123,
// afplay, ...) for each item. The payload is written to a temp file that is
// removed when playback ends, success or not. Raw PCM payloads are wrapped
// in a WAV container first so any player can consume them.
type ExecPlayer struct {
	argv []string
}

func NewExecPlayer(command string) (*ExecPlayer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty audio player command")
	}
	return &ExecPlayer{argv: argv}, nil
}

func (p *ExecPlayer) Play(ctx context.Context, item Item) error {
	data := item.Payload
	ext := "." + item.Format
	if item.Format == "pcm16" {
		data = audio.WrapWAV(data, audio.PCMFormat{})
		ext = ".wav"
	}

	f, err := os.CreateTemp("", "signbridge-audio-*"+ext)
	if err != nil {
		return fmt.Errorf("temp audio file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write audio payload: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string(nil), p.argv[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", p.argv[0], err)
	}
	return nil
}

// NopPlayer discards items. Used when no audio player command is
// configured, keeping the queue semantics intact without sound output.
type NopPlayer struct{}

func (NopPlayer) Play(ctx context.Context, _ Item) error {
	return ctx.Err()
}
