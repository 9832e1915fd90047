package audio

import "encoding/binary"

// PCMFormat describes the raw sample layout of audio payloads the
// recognition service delivers without a container. Zero values mean the
// service defaults: 16kHz mono.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

func (f PCMFormat) withDefaults() PCMFormat {
	if f.SampleRate <= 0 {
		f.SampleRate = 16000
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	return f
}

const headerSize = 44

// WrapWAV frames raw little-endian PCM16 samples in a WAV container so any
// external player can render them.
func WrapWAV(pcm []byte, format PCMFormat) []byte {
	f := format.withDefaults()
	const bitsPerSample = 16
	blockAlign := f.Channels * bitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	out := make([]byte, headerSize+len(pcm))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(headerSize-8+len(pcm)))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSample)

	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}
