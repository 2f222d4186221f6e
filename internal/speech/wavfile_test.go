package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWav(t *testing.T, samples []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "question.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating wav file: %v", err)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, defaultSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{NumChannels: 1, SampleRate: defaultSampleRate},
	}
	if err := encoder.Write(buf); err != nil {
		t.Fatalf("encoding wav samples: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}

	return path
}

func TestWavFileReadsAllSamples(t *testing.T) {
	samples := []int{0, 100, -100, 32767, -32768, 42}
	path := writeTestWav(t, samples)

	src, err := NewWavFile(path, 4)
	if err != nil {
		t.Fatalf("opening wav source: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != defaultSampleRate {
		t.Fatalf("unexpected sample rate: %d", src.SampleRate())
	}

	var decoded []int16
	for {
		chunk, err := src.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("reading chunk: %v", err)
		}
		for i := 0; i+1 < len(chunk); i += 2 {
			decoded = append(decoded, int16(binary.LittleEndian.Uint16(chunk[i:])))
		}
	}

	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}

	for i, want := range samples {
		if int(decoded[i]) != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, decoded[i])
		}
	}
}

func TestNewWavFileRejectsNonWavContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.wav")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	if _, err := NewWavFile(path, 0); err == nil {
		t.Fatal("expected error for invalid wav content")
	}
}
