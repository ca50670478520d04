package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/transcriber"
	"github.com/leonardotrapani/factstream/internal/wire"
)

type streamOptions struct {
	url        string
	chunk      int
	interval   time.Duration
	sampleRate int
	linger     time.Duration
}

func streamCmd() *cobra.Command {
	opts := streamOptions{}

	cmd := &cobra.Command{
		Use:   "stream <audio-file>",
		Short: "Stream an audio file to a running server and print results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runStream(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:8000/api/stream", "stream endpoint")
	cmd.Flags().IntVar(&opts.chunk, "chunk", 8192, "bytes per audio frame")
	cmd.Flags().DurationVar(&opts.interval, "interval", 100*time.Millisecond, "delay between frames")
	cmd.Flags().IntVar(&opts.sampleRate, "sample-rate", 0, "sample rate of raw PCM input")
	cmd.Flags().DurationVar(&opts.linger, "linger", 30*time.Second, "how long to wait for verdicts after the last frame")
	return cmd
}

// formatFor derives the start command's audio format from the file name
func formatFor(path string, sampleRate int) (*model.AudioFormatUpdate, error) {
	format, err := transcriber.ResolveUploadFormat(path, "")
	if err != nil {
		return nil, err
	}
	update := &model.AudioFormatUpdate{Mimetype: &format.Mimetype}
	if format.IsRaw() {
		update.Encoding = &format.Encoding
		rate := format.SampleRate
		if sampleRate > 0 {
			rate = sampleRate
		}
		update.SampleRate = &rate
		update.Channels = &format.Channels
	}
	return update, nil
}

func runStream(ctx context.Context, out io.Writer, path string, opts streamOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	format, err := formatFor(path, opts.sampleRate)
	if err != nil {
		return err
	}
	if opts.chunk <= 0 {
		opts.chunk = 8192
	}

	client, err := wire.Dial(ctx, opts.url, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	stopped := make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		readErr <- readMessages(out, client, stopped)
	}()

	if err := client.Start(format); err != nil {
		return err
	}
	for off := 0; off < len(data); off += opts.chunk {
		end := min(off+opts.chunk, len(data))
		if err := client.SendAudio(data[off:end]); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-time.After(opts.interval):
		}
	}
	log.Printf("stream: sent %d bytes, waiting for results", len(data))

	// give claim verification time to finish before asking the server to stop
	select {
	case <-ctx.Done():
	case err := <-readErr:
		return err
	case <-time.After(opts.linger):
	}
	if err := client.Stop(); err != nil {
		return err
	}

	select {
	case err := <-readErr:
		return err
	case <-stopped:
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for the server to stop")
	}
}

// readMessages prints server messages until the stream closes
func readMessages(out io.Writer, client *wire.Client, stopped chan<- struct{}) error {
	for {
		msg, err := client.Read()
		if err != nil {
			if wire.IsNormalClose(err) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Kind() {
		case "status":
			fmt.Fprintln(out, styleMuted.Render("status: "+msg.Status))
			if msg.Status == wire.StatusStopped {
				close(stopped)
				return nil
			}
		case "error":
			fmt.Fprintln(out, styleFalse.Render("error: "+msg.Error))
		case "transcript":
			printTranscript(out, msg.Text(), msg.IsFinal)
		case wire.TypeClaim:
			printClaim(out, *msg.Claim)
		case wire.TypeFactCheck:
			printResult(out, *msg.Result)
		}
	}
}
