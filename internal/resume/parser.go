package resume

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrParse is returned when a resume cannot be read or has an unsupported format.
var ErrParse = errors.New("resume is not parseable")

// Context holds the parsed resume text for one interview session. It is
// created once at session start and never mutated afterwards.
type Context struct {
	rawText string
}

// NewContext builds the session resume context from already-parsed text.
func NewContext(text string) (*Context, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: resume text is empty", ErrParse)
	}

	return &Context{rawText: text}, nil
}

// RawText returns the plain resume text used for prompt injection.
func (c *Context) RawText() string {
	if c == nil {
		return ""
	}
	return c.rawText
}

// Parse extracts plain text from a resume file. The format is chosen by the
// file extension: PDF, DOCX, or plain text (.txt/.md). Anything else, and any
// extraction failure, is reported as ErrParse.
func Parse(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrParse, name)
	}

	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8 text", ErrParse, name)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: unsupported resume format %q, use PDF or DOCX", ErrParse, filepath.Ext(name))
	}

	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text content found in %s", ErrParse, name)
	}

	return text, nil
}
