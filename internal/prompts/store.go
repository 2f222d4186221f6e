package prompts

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Template names known to the store.
const (
	Interviewer     = "interviewer"
	AnswerGenerator = "answer_generator"
	Followups       = "followups"
)

//go:embed templates/*.txt
var defaults embed.FS

// Store resolves prompt templates by name. Templates placed in the override
// directory shadow the built-in defaults, so users can tune prompts without
// rebuilding the binary.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a template store. The directory is optional; when empty
// only the embedded defaults are served.
func NewStore(filesystem afero.Fs, dir string) *Store {
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}

	return &Store{fs: filesystem, dir: strings.TrimSpace(dir)}
}

// Load returns the template with the given name.
func (s *Store) Load(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("template name is required")
	}

	if s.dir != "" {
		path := filepath.Join(s.dir, name+".txt")
		if exists, _ := afero.Exists(s.fs, path); exists {
			data, err := afero.ReadFile(s.fs, path)
			if err != nil {
				return "", fmt.Errorf("read template override %q: %w", path, err)
			}
			return string(data), nil
		}
	}

	data, err := defaults.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown template %q", name)
	}

	return string(data), nil
}

// Fill replaces {{KEY}} placeholders in the template with the provided values.
func Fill(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{{"+key+"}}", value)
	}
	return template
}
