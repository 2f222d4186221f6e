package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavFile replays a recorded .wav file as an audio source. Useful for
// offline runs and for exercising the transcriber without a microphone.
type WavFile struct {
	file    *os.File
	decoder *wav.Decoder
	frames  int
}

// NewWavFile opens the file and validates the WAV header.
func NewWavFile(path string, framesPerBuffer int) (*WavFile, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}

	return &WavFile{file: file, decoder: decoder, frames: framesPerBuffer}, nil
}

// SampleRate reports the sample rate recorded in the WAV header.
func (w *WavFile) SampleRate() int {
	return int(w.decoder.SampleRate)
}

// Read returns the next chunk of samples as little-endian PCM bytes and
// io.EOF once the file is exhausted.
func (w *WavFile) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, w.frames),
		Format: w.decoder.Format(),
	}

	n, err := w.decoder.PCMBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("decode wav samples: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(buf.Data[i])))
	}

	return out, nil
}

func (w *WavFile) Close() error {
	return w.file.Close()
}
