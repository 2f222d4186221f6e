package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"interview-copilot/internal/logger"
	"interview-copilot/internal/prompts"
	"interview-copilot/internal/resume"
	"interview-copilot/internal/session"
	"interview-copilot/internal/utils"

	"go.uber.org/zap"
)

// ErrUpstream marks failures of the external generative service. Callers
// surface it to the user and abort the current interaction.
var ErrUpstream = errors.New("upstream generation failed")

const (
	defaultInterviewType = "technical"
	defaultAnswerStyle   = "Medium"
	defaultMaxLogLength  = 200
)

// textGenerator is the slice of the Gemini client the engine depends on.
type textGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateContentStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Config carries the per-session interview settings.
type Config struct {
	// InterviewType selects the interviewer persona, e.g. "technical" or "hr".
	InterviewType string
	// AnswerStyle is the desired answer length: Short, Medium or Detailed.
	AnswerStyle string
	// MaxLogLength caps prompt/response previews in debug logs.
	MaxLogLength int
}

// Deps aggregates the collaborators an engine needs.
type Deps struct {
	Generator textGenerator
	Prompts   *prompts.Store
	Resume    *resume.Context
	History   *session.History
	Logger    *zap.Logger
}

// Engine orchestrates question and answer generation for a single interview
// session and records completed turns in the session history. It is owned by
// exactly one interaction loop; a second call while another is in flight is a
// caller error.
type Engine struct {
	generator     textGenerator
	prompts       *prompts.Store
	resume        *resume.Context
	history       *session.History
	logger        *zap.Logger
	interviewType string
	answerStyle   string
	maxLogLen     int
}

// New validates the dependencies and builds an engine.
func New(cfg *Config, deps *Deps) (*Engine, error) {
	if deps == nil {
		return nil, errors.New("engine dependencies are required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Prompts == nil {
		return nil, errors.New("prompt store is required")
	}
	if deps.Resume == nil {
		return nil, errors.New("resume context is required")
	}
	if deps.History == nil {
		return nil, errors.New("session history is required")
	}

	if cfg == nil {
		cfg = &Config{}
	}

	interviewType := strings.TrimSpace(cfg.InterviewType)
	if interviewType == "" {
		interviewType = defaultInterviewType
	}

	answerStyle := strings.TrimSpace(cfg.AnswerStyle)
	if answerStyle == "" {
		answerStyle = defaultAnswerStyle
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	lg := logger.WithSession(deps.Logger, deps.History.SessionID)

	return &Engine{
		generator:     deps.Generator,
		prompts:       deps.Prompts,
		resume:        deps.Resume,
		history:       deps.History,
		logger:        lg,
		interviewType: interviewType,
		answerStyle:   answerStyle,
		maxLogLen:     maxLogLen,
	}, nil
}

// History exposes the session history owned by the engine.
func (e *Engine) History() *session.History {
	return e.history
}

// GenerateQuestion asks the model for the next practice interview question
// based on the resume (simulation mode).
func (e *Engine) GenerateQuestion(ctx context.Context) (string, error) {
	template, err := e.prompts.Load(prompts.Interviewer)
	if err != nil {
		return "", fmt.Errorf("load interviewer template: %w", err)
	}

	prompt := prompts.Fill(template, map[string]string{
		"INTERVIEW_TYPE": e.interviewType,
		"RESUME_CONTEXT": e.resume.RawText(),
	})

	e.logger.Debug("generating interview question",
		zap.String("interview_type", e.interviewType),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	question, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return strings.TrimSpace(question), nil
}

// GenerateAnswer asks the model to answer the interviewer's question in
// streaming mode. The returned sequence is lazy, finite and non-restartable;
// each element is the next text chunk. When the stream is consumed to
// completion, exactly one history entry with the full question/answer pair is
// appended. On upstream failure the sequence yields a single ErrUpstream
// error and nothing is recorded. An early break by the consumer also records
// nothing.
func (e *Engine) GenerateAnswer(ctx context.Context, question string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		question = strings.TrimSpace(question)
		if question == "" {
			yield("", errors.New("question must not be empty"))
			return
		}

		template, err := e.prompts.Load(prompts.AnswerGenerator)
		if err != nil {
			yield("", fmt.Errorf("load answer template: %w", err))
			return
		}

		prompt := prompts.Fill(template, map[string]string{
			"RESUME_CONTEXT": e.resume.RawText(),
			"QUESTION":       question,
			"ANSWER_STYLE":   e.answerStyle,
		})

		e.logger.Debug("generating answer",
			zap.String("question_preview", utils.TruncateForLog(question, e.maxLogLen)),
			zap.String("answer_style", e.answerStyle),
		)

		var answer strings.Builder
		for chunk, streamErr := range e.generator.GenerateContentStream(ctx, prompt) {
			if streamErr != nil {
				yield("", fmt.Errorf("%w: %v", ErrUpstream, streamErr))
				return
			}

			answer.WriteString(chunk)
			if !yield(chunk, nil) {
				return
			}
		}

		full := strings.TrimSpace(answer.String())
		if full == "" {
			yield("", fmt.Errorf("%w: model returned an empty answer", ErrUpstream))
			return
		}

		e.history.Append(session.Entry{
			Question: question,
			Answer:   full,
		})

		e.logger.Debug("recorded interview turn",
			zap.Int("turn", e.history.Len()-1),
			zap.String("answer_preview", utils.TruncateForLog(full, e.maxLogLen)),
		)
	}
}

// SuggestFollowups proposes follow-up questions for the given turn. It never
// fails: any template, upstream or parsing problem yields an empty slice,
// since follow-ups are a non-critical enhancement. Successful suggestions are
// attached to the latest history entry.
func (e *Engine) SuggestFollowups(ctx context.Context, question, answer string) []string {
	template, err := e.prompts.Load(prompts.Followups)
	if err != nil {
		e.logger.Debug("skipping follow-ups", zap.Error(err))
		return nil
	}

	prompt := prompts.Fill(template, map[string]string{
		"QUESTION": question,
		"ANSWER":   answer,
	})

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		e.logger.Debug("skipping follow-ups", zap.Error(err))
		return nil
	}

	followups, err := parseFollowups(raw)
	if err != nil {
		e.logger.Debug("skipping follow-ups",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		return nil
	}

	e.history.AttachFollowups(followups)

	return followups
}
