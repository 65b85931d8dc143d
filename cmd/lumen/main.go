// Lumen is the command line for the assistive stick: one-shot sensor and
// speech commands, the assist loop and the control API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-lumen/internal/config"
	"github.com/teslashibe/go-lumen/internal/log"
	"github.com/teslashibe/go-lumen/pkg/lumen"
)

var (
	configPath string
	simulate   bool
	gpsPort    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Assistive navigation and perception for a smart stick",
	Long: `Lumen fuses distance, gesture, environment, GPS, sound and camera
input into spoken and haptic feedback.

Run "lumen assist" for the decision loop or "lumen serve" for the
control API. Every adapter has a simulated fallback (--simulate).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lumen.yaml", "YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Simulate every sensor and actuator")
	rootCmd.PersistentFlags().StringVar(&gpsPort, "gps-port", "", "GPS serial port (overrides GPS_SERIAL_PORT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		readTextCmd, speakCmd, captureCmd, listenCmd, gestureCmd, gpsCmd,
		statusCmd, assistCmd, serveCmd, peopleCmd, personaCmd, memoryCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig applies flags on top of the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("simulate") {
		cfg.Simulate = simulate
	}
	if gpsPort != "" {
		cfg.GPS.SerialPort = gpsPort
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openApp builds the app for one command. The caller closes it.
func openApp(cmd *cobra.Command) (*lumen.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level)
	return lumen.New(cmd.Context(), cfg, log.L())
}

// withApp runs fn against a fresh app and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, a *lumen.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("close failed", "error", err)
			}
		}()
		return fn(cmd, a, args)
	}
}
