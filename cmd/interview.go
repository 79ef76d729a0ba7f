package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/interview"
	"github.com/spigell/prepmate/internal/speech"
)

const speakFilePerm = 0o644

var errExit = errors.New("exit requested")

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Practice an interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)
	addInterviewFlags(interviewCmd, viper.GetViper())
}

// addInterviewFlags registers the interview flags on cmd and binds each one to
// its interview.* key in v.
func addInterviewFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().StringP("category", "c", "", "interview category (asked interactively when empty)")
	cmd.Flags().StringP("role", "r", "", "role the candidate is practicing for")
	cmd.Flags().StringP("mode", "m", "", "static or dynamic (default from config)")
	cmd.Flags().String("audio-dir", "", "answer with recorded audio files from this directory, in name order")
	cmd.Flags().String("speak-dir", "", "write each question as speech into this directory")

	for _, name := range []string{"category", "role", "mode", "audio-dir", "speak-dir"} {
		v.BindPFlag("interview."+name, cmd.Flags().Lookup(name))
	}
}

func runInterview(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	comps, err := buildComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the interview service", zap.Error(err))
	}
	defer comps.Close()

	audioDir := config.Interview.AudioDir
	speakDir := config.Interview.SpeakDir
	if audioDir != "" && comps.transcriber == nil {
		logger.Fatal("answering with audio needs a speech-to-text provider", zap.String("hint", "configure ai.provider and its api key"))
	}
	if speakDir != "" && comps.synthesizer == nil {
		logger.Fatal("speaking questions needs a text-to-speech provider", zap.String("hint", "set ai.provider to openai"))
	}

	category := config.Interview.Category
	if category == "" {
		categoryPrompt := promptui.Select{
			Label: "Choose a category",
			Items: comps.service.Categories(),
			Size:  12,
		}
		if _, category, err = categoryPrompt.Run(); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}
	role := config.Interview.Role

	p := &practice{
		service:     comps.service,
		synthesizer: comps.synthesizer,
		speakDir:    speakDir,
		out:         cmd.OutOrStdout(),
		logger:      logger,
	}

	if err := p.start(ctx, category, role); err != nil {
		logger.Fatal("starting the interview", zap.Error(err))
	}

	if audioDir != "" {
		err = p.answerFromAudio(ctx, audioDir, comps.transcriber)
	} else {
		err = p.answerTyped(ctx, promptAnswer)
	}
	if err != nil && !errors.Is(err, errExit) && !errors.Is(err, context.Canceled) {
		logger.Fatal("interview failed", zap.Error(err))
	}

	if !p.complete {
		logger.Info("interview stopped before the last question", zap.String("session_id", p.sessionID))
		return
	}

	if comps.store == nil {
		logger.Info("not saving the interview", zap.String("reason", "storage.driver is none"))
		return
	}
	rec, err := comps.service.Save(ctx, p.sessionID)
	if err != nil {
		logger.Fatal("saving the interview", zap.Error(err))
	}
	logger.Info("interview saved", zap.String("session_id", rec.SessionID), zap.Int("answers", len(rec.Transcript)))
}

func promptAnswer() (string, error) {
	answerPrompt := promptui.Prompt{
		Label: "Your answer",
	}
	answer, err := answerPrompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", errExit
	}
	return answer, err
}

// practice drives one terminal interview.
type practice struct {
	service     *interview.Service
	synthesizer speech.Synthesizer
	speakDir    string
	out         io.Writer
	logger      *zap.Logger

	sessionID string
	quota     int
	complete  bool
}

func (p *practice) start(ctx context.Context, category, role string) error {
	res, err := p.service.Start(ctx, category, role)
	if err != nil {
		return err
	}
	if res.CategoryCorrected {
		p.logger.Warn("unknown category, using the default", zap.String("requested", category), zap.String("category", res.Category))
	}

	p.sessionID = res.SessionID
	p.quota = res.Quota

	fmt.Fprintf(p.out, "Starting a %s interview (%d questions).\n", res.Category, res.Quota)
	p.ask(ctx, res.Number, res.Question)
	return nil
}

func (p *practice) answerTyped(ctx context.Context, read func() (string, error)) error {
	for !p.complete {
		answer, err := read()
		if err != nil {
			return err
		}
		if err := p.submit(ctx, answer); err != nil {
			return err
		}
	}
	return nil
}

func (p *practice) answerFromAudio(ctx context.Context, dir string, transcriber speech.Transcriber) error {
	source, err := speech.NewDirSource(dir)
	if err != nil {
		return err
	}
	if source.Len() < p.quota {
		p.logger.Warn("fewer recordings than questions", zap.Int("recordings", source.Len()), zap.Int("questions", p.quota))
	}

	pipeline := &speech.Pipeline{
		Source:      source,
		Transcriber: transcriber,
		Logger:      p.logger.Named("speech"),
	}

	return pipeline.Run(ctx, func(ctx context.Context, u speech.Utterance) error {
		fmt.Fprintf(p.out, "[%s] %s\n", u.Clip, u.Text)
		if err := p.submit(ctx, u.Text); err != nil {
			return err
		}
		if p.complete {
			return speech.ErrStop
		}
		return nil
	})
}

func (p *practice) submit(ctx context.Context, answer string) error {
	res, err := p.service.Submit(ctx, p.sessionID, strings.TrimSpace(answer), nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.out, "\nFeedback: %s\n", res.Feedback)

	if res.Complete {
		p.complete = true
		fmt.Fprintf(p.out, "\n%s\n", res.FinalAssessment)
		return nil
	}

	p.ask(ctx, res.Number, res.NextQuestion)
	return nil
}

func (p *practice) ask(ctx context.Context, number int, question string) {
	fmt.Fprintf(p.out, "\nQuestion %d/%d: %s\n", number, p.quota, question)

	if p.speakDir == "" || p.synthesizer == nil {
		return
	}

	audio, err := p.synthesizer.Synthesize(ctx, question)
	if err != nil {
		p.logger.Warn("speaking the question failed", zap.Int("question", number), zap.Error(err))
		return
	}
	if err := os.MkdirAll(p.speakDir, 0o755); err != nil {
		p.logger.Warn("creating the speech dir failed", zap.Error(err))
		return
	}

	path := filepath.Join(p.speakDir, fmt.Sprintf("%s_q%d.mp3", p.sessionID, number))
	if err := os.WriteFile(path, audio, speakFilePerm); err != nil {
		p.logger.Warn("writing the question audio failed", zap.String("path", path), zap.Error(err))
		return
	}
	p.logger.Debug("question spoken", zap.String("path", path))
}
