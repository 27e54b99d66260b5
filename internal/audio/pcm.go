package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square amplitude of a PCM16 frame on a [0,1]
// scale, used as a cheap voice-activity signal.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// FrameBytes encodes a PCM16 frame as little-endian bytes, the layout both
// the WAV container and the wire format expect.
func FrameBytes(frame []int16) []byte {
	var out bytes.Buffer
	out.Grow(len(frame) * 2)
	_ = binary.Write(&out, binary.LittleEndian, frame)
	return out.Bytes()
}
