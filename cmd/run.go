package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"interview-copilot/internal/engine"
	"interview-copilot/internal/gemini"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/prompts"
	"interview-copilot/internal/resume"
	"interview-copilot/internal/secrets"
	"interview-copilot/internal/session"
	"interview-copilot/internal/speech"

	"github.com/manifoldco/promptui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptAskNext      = "Ask next question"
	PromptTypeQuestion = "Type interviewer question"
	PromptListen       = "Listen for question"
	PromptFollowups    = "Suggest follow-ups"
	PromptShowHistory  = "Show history"
	PromptSaveAndExit  = "Save and exit"

	defaultSessionFile = "sessions.json"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive interview session",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "path to the resume file (pdf, docx, txt or md)")
	runCmd.Flags().StringP("mode", "m", ModeSimulation, "interview mode: copilot or simulation")
	runCmd.Flags().StringP("interview-type", "t", "technical", "interviewer persona: technical or hr")
	runCmd.Flags().String("answer-style", "Medium", "answer length: Short, Medium or Detailed")
	runCmd.Flags().StringP("session-file", "s", defaultSessionFile, "file to persist the session history to")
	runCmd.Flags().String("prompts-dir", "", "directory with prompt template overrides")

	viper.BindPFlag("resume", runCmd.Flags().Lookup("resume"))
	viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("interview-type", runCmd.Flags().Lookup("interview-type"))
	viper.BindPFlag("answer-style", runCmd.Flags().Lookup("answer-style"))
	viper.BindPFlag("session-file", runCmd.Flags().Lookup("session-file"))
	viper.BindPFlag("prompts-dir", runCmd.Flags().Lookup("prompts-dir"))
}

// run is the main command for the cli.
func run() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interview-copilot", zap.String("version", version))

	mode := strings.ToLower(strings.TrimSpace(config.Mode))
	if mode == "" {
		mode = ModeSimulation
	}
	if mode != ModeCopilot && mode != ModeSimulation {
		logger.Fatal("invalid mode", zap.String("mode", config.Mode))
	}

	if config.Resume == "" {
		logger.Fatal("resume path is required",
			zap.String("hint", "set the 'resume' key in the configuration file or pass --resume"),
		)
	}

	apiKey, err := resolveAPIKey(config)
	if err != nil {
		logger.Fatal("loading gemini api key",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY, or gemini.api-key-file in the configuration file"),
		)
	}

	resumeCtx, err := loadResume(config.Resume)
	if err != nil {
		logger.Fatal("parsing the resume", zap.Error(err), zap.String("resume", config.Resume))
	}

	logger.Info("resume loaded", zap.String("resume", config.Resume))

	sessionFile := config.SessionFile
	if sessionFile == "" {
		sessionFile = defaultSessionFile
	}

	history, err := session.Load(sessionFile)
	switch {
	case errors.Is(err, session.ErrNotFound):
		history = session.New()
		logger.Info("starting a new session", zap.String("session_id", history.SessionID))
	case err != nil:
		logger.Fatal("loading session history", zap.Error(err), zap.String("session_file", sessionFile))
	default:
		logger.Info("resuming session",
			zap.String("session_id", history.SessionID),
			zap.Int("turns", history.Len()),
		)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model, config.Gemini.MaxRetries, logger)
	if err != nil {
		logger.Fatal("creating gemini generator", zap.Error(err))
	}

	interviewEngine, err := engine.New(&engine.Config{
		InterviewType: config.InterviewType,
		AnswerStyle:   config.AnswerStyle,
		MaxLogLength:  config.Gemini.MaxLogLength,
	}, &engine.Deps{
		Generator: generator,
		Prompts:   prompts.NewStore(afero.NewOsFs(), config.PromptsDir),
		Resume:    resumeCtx,
		History:   history,
		Logger:    logger.With(zap.String("provider", "gemini"), zap.String("model", generator.Model())),
	})
	if err != nil {
		logger.Fatal("creating interview engine", zap.Error(err))
	}

	loop := &sessionLoop{
		engine:      interviewEngine,
		config:      config,
		mode:        mode,
		sessionFile: sessionFile,
		logger:      logger,
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: loop.actions(),
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			loop.checkpoint()
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := loop.handle(ctx, action); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("interaction failed", zap.Error(err))
		}
	}
}

type sessionLoop struct {
	engine      *engine.Engine
	config      *Config
	mode        string
	sessionFile string
	logger      *zap.Logger
}

func (l *sessionLoop) actions() []string {
	var items []string

	if l.mode == ModeSimulation {
		items = append(items, PromptAskNext)
	} else {
		items = append(items, PromptTypeQuestion)
		if l.config.Speech != nil && l.config.Speech.ServerURL != "" {
			items = append(items, PromptListen)
		}
	}

	return append(items, PromptFollowups, PromptShowHistory, PromptSaveAndExit)
}

func (l *sessionLoop) handle(ctx context.Context, action string) error {
	switch action {
	case PromptAskNext:
		question, err := l.engine.GenerateQuestion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nQ: %s\n", question)
		return l.answer(ctx, question)
	case PromptTypeQuestion:
		question, err := readQuestion()
		if err != nil {
			return err
		}
		return l.answer(ctx, question)
	case PromptListen:
		question, err := l.listen(ctx)
		if err != nil {
			return err
		}
		if question == "" {
			l.logger.Info("nothing recognized, try again")
			return nil
		}
		fmt.Printf("\nQ: %s\n", question)
		return l.answer(ctx, question)
	case PromptFollowups:
		return l.followups(ctx)
	case PromptShowHistory:
		return l.showHistory()
	case PromptSaveAndExit:
		l.checkpoint()
		l.logger.Info("exiting", zap.String("reason", "session saved"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// answer streams the generated answer to stdout and checkpoints the history
// once the turn is recorded.
func (l *sessionLoop) answer(ctx context.Context, question string) error {
	fmt.Print("\nA: ")

	for chunk, err := range l.engine.GenerateAnswer(ctx, question) {
		if err != nil {
			fmt.Println()
			if errors.Is(err, engine.ErrUpstream) {
				return fmt.Errorf("the model is unavailable, interaction aborted: %w", err)
			}
			return err
		}
		fmt.Print(chunk)
	}
	fmt.Println()

	l.checkpoint()
	return nil
}

func (l *sessionLoop) followups(ctx context.Context) error {
	last := l.engine.History().Last()
	if last == nil {
		l.logger.Info("no turns yet, ask a question first")
		return nil
	}

	followups := l.engine.SuggestFollowups(ctx, last.Question, last.Answer)
	if len(followups) == 0 {
		l.logger.Info("no follow-ups suggested")
		return nil
	}

	fmt.Println("\nLikely follow-up questions:")
	for i, followup := range followups {
		fmt.Printf("  %d. %s\n", i+1, followup)
	}

	l.checkpoint()
	return nil
}

func (l *sessionLoop) showHistory() error {
	history := l.engine.History()
	if history.Len() == 0 {
		l.logger.Info("history is empty")
		return nil
	}

	pretty, err := json.MarshalIndent(history.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("render history: %w", err)
	}

	fmt.Printf("\n%s\n", pretty)
	return nil
}

// listen captures one spoken question through the configured Vosk server.
func (l *sessionLoop) listen(ctx context.Context) (string, error) {
	cfg := l.config.Speech

	transcriber, err := speech.NewTranscriber(&speech.Config{
		ServerURL:      cfg.ServerURL,
		SampleRate:     cfg.SampleRate,
		SilenceTimeout: cfg.SilenceTimeout,
		MaxDuration:    cfg.MaxDuration,
	}, l.logger)
	if err != nil {
		return "", err
	}

	source, err := l.audioSource()
	if err != nil {
		return "", err
	}
	defer source.Close()

	l.logger.Info("listening, speak now")

	segments, errc := transcriber.Listen(ctx, source)

	var question string
	for segment := range segments {
		question = segment.Text
		fmt.Printf("\r%s", segment.Text)
	}
	fmt.Println()

	if err := <-errc; err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return question, nil
}

func (l *sessionLoop) audioSource() (speech.Source, error) {
	cfg := l.config.Speech

	if cfg.WavFile != "" {
		return speech.NewWavFile(cfg.WavFile, 0)
	}

	return speech.NewMic(cfg.SampleRate, 0)
}

// checkpoint persists the history; failures are logged, not fatal, since the
// in-memory session is still usable.
func (l *sessionLoop) checkpoint() {
	if err := l.engine.History().Save(l.sessionFile); err != nil {
		l.logger.Warn("saving session history", zap.Error(err), zap.String("session_file", l.sessionFile))
	}
}

func readQuestion() (string, error) {
	prompt := promptui.Prompt{
		Label: "Interviewer question",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("question must not be empty")
			}
			return nil
		},
	}

	question, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(question), nil
}

func resolveAPIKey(config *Config) (string, error) {
	if config == nil || config.Gemini == nil {
		return "", errors.New("config is required")
	}

	return secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		File:  config.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
}

func loadResume(path string) (*resume.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume file: %w", err)
	}

	text, err := resume.Parse(path, data)
	if err != nil {
		return nil, err
	}

	return resume.NewContext(text)
}
