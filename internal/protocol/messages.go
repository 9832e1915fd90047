package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeVideoFrame MessageType = "video_frame"
	TypeCaption    MessageType = "caption"
	TypeAudio      MessageType = "audio"
	TypeError      MessageType = "error"
)

// CaptionLevel orders recognizer output by confidence tier.
type CaptionLevel string

const (
	LevelLive     CaptionLevel = "live"
	LevelWord     CaptionLevel = "word"
	LevelSentence CaptionLevel = "sentence"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// VideoFrame is the only client->service payload: one JPEG frame,
// base64-encoded. FrameID is a per-session monotonic counter used for
// diagnostics only, never for ordering.
type VideoFrame struct {
	Type        MessageType `json:"type"`
	FrameID     uint64      `json:"frameId"`
	TimestampMS int64       `json:"timestamp"`
	ImageBase64 string      `json:"image"`
	SessionID   string      `json:"sessionId"`
	UserID      string      `json:"userId"`
}

type Caption struct {
	Type        MessageType  `json:"type"`
	Level       CaptionLevel `json:"level"`
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
	TimestampMS int64        `json:"timestamp"`
}

type Audio struct {
	Type        MessageType `json:"type"`
	Format      string      `json:"format"`
	DataBase64  string      `json:"data"`
	TimestampMS int64       `json:"timestamp"`
}

type ErrorEvent struct {
	Type        MessageType `json:"type"`
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Severity    string      `json:"severity"`
	TimestampMS int64       `json:"timestamp"`
}

// ParseServerMessage decodes one inbound envelope into its concrete type.
// Unknown envelope types return ErrUnsupportedType so callers can skip
// them without treating the frame as malformed.
func ParseServerMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeCaption:
		var msg Caption
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Level {
		case LevelLive, LevelWord, LevelSentence:
		default:
			return nil, fmt.Errorf("invalid caption level %q", msg.Level)
		}
		return msg, nil
	case TypeAudio:
		var msg Audio
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.DataBase64 == "" {
			return nil, errors.New("invalid audio: empty data")
		}
		return msg, nil
	case TypeError:
		var msg ErrorEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Code == "" {
			return nil, errors.New("invalid error: empty code")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
