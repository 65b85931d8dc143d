package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-lumen/internal/log"
	"github.com/teslashibe/go-lumen/pkg/lumen"
	"github.com/teslashibe/go-lumen/pkg/web"
)

var (
	readImage     string
	speakText     string
	capturePath   string
	listenTimeout time.Duration
	iterations    int
	interval      time.Duration
	staticDir     string
	enrollImage   string
	memoryLimit   int
)

func init() {
	readTextCmd.Flags().StringVar(&readImage, "image", "data/capture.jpg", "Image to read; captured first if missing")
	speakCmd.Flags().StringVar(&speakText, "text", "Hello from Lumen!", "Text to speak")
	captureCmd.Flags().StringVar(&capturePath, "out", "data/capture.jpg", "Where to save the frame")
	listenCmd.Flags().DurationVar(&listenTimeout, "timeout", 5*time.Second, "How long to listen")
	assistCmd.Flags().IntVar(&iterations, "iterations", 30, "Ticks to run; 0 runs until interrupted")
	assistCmd.Flags().DurationVar(&interval, "interval", time.Second, "Pause between ticks")
	serveCmd.Flags().StringVar(&staticDir, "static", "", "Directory with the web UI")
	enrollCmd.Flags().StringVar(&enrollImage, "image", "", "Face image; captured when empty")
	memoryCmd.Flags().IntVar(&memoryLimit, "limit", 20, "Number of recent events")

	peopleCmd.AddCommand(peopleListCmd, enrollCmd, forgetCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var readTextCmd = &cobra.Command{
	Use:   "read-text",
	Short: "Read the text in an image aloud",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		text, err := a.ReadText(cmd.Context(), readImage)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}),
}

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Speak a line of text",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		a.Speak(cmd.Context(), speakText)
		return nil
	}),
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Save one camera frame",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		path, err := a.Capture(cmd.Context(), capturePath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved", path)
		return nil
	}),
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe one utterance",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), a.Listen(cmd.Context(), listenTimeout))
		return nil
	}),
}

var gestureCmd = &cobra.Command{
	Use:   "gesture",
	Short: "Read one gesture",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		return printJSON(cmd.OutOrStdout(), map[string]any{"gesture": a.Gesture(cmd.Context())})
	}),
}

var gpsCmd = &cobra.Command{
	Use:   "gps",
	Short: "Read the current location",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		return printJSON(cmd.OutOrStdout(), a.Location(cmd.Context()))
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print sensor readings and engine state",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		return printJSON(cmd.OutOrStdout(), a.Status(cmd.Context()))
	}),
}

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Run the assist loop",
	Long: `Run the fusion and decision loop in the foreground. Interrupting
stops the loop after the current tick.`,
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		if err := a.StartAssist(iterations, interval); err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			a.WaitAssist()
			close(done)
		}()
		select {
		case <-done:
		case <-cmd.Context().Done():
			a.StopAssist()
			<-done
		}
		return nil
	}),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API and live event feed",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		cfg := a.Config()
		if _, err := os.Stat(configPath); err == nil {
			if err := a.WatchConfig(configPath); err != nil {
				return err
			}
		}
		if cfg.Voice.WakeEnabled {
			if _, err := a.SetWake(true, cfg.Voice.WakeInterval); err != nil {
				return err
			}
		}
		srv := web.NewServer(a, web.Config{
			Addr:      cfg.Server.Addr,
			DataDir:   cfg.DataDir,
			StaticDir: staticDir,
		}, log.L())
		return srv.Start(cmd.Context())
	}),
}

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage enrolled faces",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		names, err := a.ListPeople()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	}),
}

var enrollCmd = &cobra.Command{
	Use:   "enroll NAME",
	Short: "Enroll a face",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, args []string) error {
		if err := a.Enroll(cmd.Context(), args[0], enrollImage); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Enrolled", args[0])
		return nil
	}),
}

var forgetCmd = &cobra.Command{
	Use:   "forget NAME",
	Short: "Forget an enrolled face",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, args []string) error {
		return a.Forget(args[0])
	}),
}

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Print the persona state",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		return printJSON(cmd.OutOrStdout(), a.PersonaState())
	}),
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Print recent events",
	RunE: withApp(func(cmd *cobra.Command, a *lumen.App, _ []string) error {
		if memoryLimit <= 0 {
			return errors.New("--limit must be positive")
		}
		events, err := a.Events(memoryLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), events)
	}),
}
