package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/textcast-go/internal/client"
	"github.com/dgnsrekt/textcast-go/internal/logging"
)

const usage = `usage: textcast-cli <command> [flags]

commands:
  speech   narrate text into an MP3
  video    render an MP3 over a solid background into an MP4

environment:
  TEXTCAST_URL     service base URL (default http://localhost:8080)
  TEXTCAST_TOKEN   bearer token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := client.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	c := client.NewClient(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "speech":
		err = runSpeech(ctx, c, os.Args[2:])
	case "video":
		err = runVideo(ctx, c, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runSpeech(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("speech", flag.ContinueOnError)
	in := fs.String("in", "-", "text file to narrate (- for stdin)")
	text := fs.String("text", "", "text to narrate, overrides -in")
	lang := fs.String("lang", "", "language code, e.g. en or pt-BR")
	speed := fs.Float64("speed", 1, "playback speed between 0.5 and 1.5")
	out := fs.String("out", "audio.mp3", "output file (- for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body := *text
	if body == "" {
		data, err := readInput(*in)
		if err != nil {
			return err
		}
		body = string(data)
	}

	start := time.Now()
	audio, err := c.Speech(ctx, client.SpeechParams{Text: body, Language: *lang, Speed: *speed})
	if err != nil {
		return err
	}
	return writeOutput(*out, audio, start)
}

func runVideo(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	audioPath := fs.String("audio", "", "MP3 file to render (required)")
	bg := fs.String("bg", "", "background color, e.g. #112233 or black")
	resolution := fs.String("resolution", "", "WIDTHxHEIGHT, default 1280x720")
	title := fs.String("title", "", "video title")
	out := fs.String("out", "video.mp4", "output file (- for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *audioPath == "" {
		return errors.New("-audio is required")
	}

	audio, err := readInput(*audioPath)
	if err != nil {
		return err
	}

	start := time.Now()
	video, err := c.Video(ctx, client.VideoParams{
		Audio:           audio,
		Filename:        filepath.Base(*audioPath),
		BackgroundColor: *bg,
		Resolution:      *resolution,
		Title:           *title,
	})
	if err != nil {
		return err
	}
	return writeOutput(*out, video, start)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(path string, data []byte, start time.Time) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s) in %s\n", path, humanize.Bytes(uint64(len(data))), time.Since(start).Round(time.Millisecond))
	return nil
}
