package audio

import (
	"github.com/gordonklaus/portaudio"
)

// Mic wraps a PortAudio capture stream. A Mic is opened per recording session
// and fully released on Close, so the OS device lock never outlives the
// session that owns it.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16
}

// NewMic opens a PortAudio capture stream with the given sample rate and
// buffer size (in frames). portaudio.Initialize must have been called.
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf}, nil
}

func (m *Mic) Start() error { return m.stream.Start() }
func (m *Mic) Stop() error  { return m.stream.Stop() }

// Close releases the underlying device handle.
func (m *Mic) Close() error { return m.stream.Close() }

// ReadFrame blocks until one buffer of samples is available and returns a
// copy, so callers may retain it across subsequent reads.
func (m *Mic) ReadFrame() ([]int16, error) {
	if err := m.stream.Read(); err != nil {
		return nil, err
	}
	frame := make([]int16, len(m.buf))
	copy(frame, m.buf)
	return frame, nil
}
