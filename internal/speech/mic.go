package speech

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const defaultFramesPerBuffer = 8000

// Mic captures 16-bit mono PCM from the default input device via portaudio.
type Mic struct {
	stream *portaudio.Stream
	in     []int16
}

// NewMic opens the default recording device at the given sample rate and
// starts capturing. Close releases the device and shuts portaudio down.
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(in), in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open default input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	return &Mic{stream: stream, in: in}, nil
}

// Read blocks until the next capture buffer is full and returns it as
// little-endian PCM bytes. A microphone never reports io.EOF.
func (m *Mic) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("read microphone: %w", err)
	}

	buf := make([]byte, len(m.in)*2)
	for i, sample := range m.in {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}

	return buf, nil
}

func (m *Mic) Close() error {
	if m.stream != nil {
		m.stream.Stop()
		if err := m.stream.Close(); err != nil {
			portaudio.Terminate()
			return fmt.Errorf("close input stream: %w", err)
		}
	}

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}

	return nil
}
