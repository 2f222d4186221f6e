package speech

import "context"

// Segment is one step of a live transcription. Text is the cumulative
// transcript so far; Final marks the last segment of a listening session.
type Segment struct {
	Text  string
	Final bool
}

// Source supplies 16-bit little-endian mono PCM audio in chunks. Read blocks
// until a chunk is available and returns io.EOF when the audio ends;
// microphone sources never end on their own, the transcriber's silence and
// duration limits stop them.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}
