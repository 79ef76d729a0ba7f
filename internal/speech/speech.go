// Package speech connects audio capture to transcription.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBuffer = 4

// ErrStop can be returned by a handler to end Run without an error.
var ErrStop = errors.New("stop pipeline")

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Clip is one captured recording.
type Clip struct {
	Name  string
	Audio []byte
}

// Source yields clips until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Clip, error)
}

// Utterance is the transcription of a clip. Err is set when transcription
// failed, in which case Text is empty.
type Utterance struct {
	Clip string
	Text string
	Err  error
}

// Pipeline reads clips on a capture goroutine and hands them to a processing
// goroutine over a channel holding at most Buffer clips. The capture side only
// reads audio; all state changes happen in the handler.
type Pipeline struct {
	Source      Source
	Transcriber Transcriber
	Buffer      int
	Logger      *zap.Logger
}

// Run blocks until the source is exhausted, the handler returns an error or
// ctx is done. handle is called sequentially in capture order.
func (p *Pipeline) Run(ctx context.Context, handle func(ctx context.Context, u Utterance) error) error {
	if p.Source == nil || p.Transcriber == nil {
		return errors.New("speech pipeline needs a source and a transcriber")
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := p.Buffer
	if size <= 0 {
		size = defaultBuffer
	}

	clips := make(chan Clip, size)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(clips)
		for {
			clip, err := p.Source.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("capture: %w", err)
			}

			select {
			case clips <- clip:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for clip := range clips {
			text, err := p.Transcriber.Transcribe(ctx, clip.Audio)
			if err != nil {
				log.Error("transcription failed", zap.String("clip", clip.Name), zap.Error(err))
				text = ""
			}

			if err := handle(ctx, Utterance{Clip: clip.Name, Text: text, Err: err}); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, ErrStop) {
		return err
	}
	return nil
}
