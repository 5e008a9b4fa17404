package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/agxmon/internal/config"
	"codeberg.org/mutker/agxmon/internal/console"
	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/history"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/monitor"
	"codeberg.org/mutker/agxmon/internal/pid"
	"codeberg.org/mutker/agxmon/internal/transport"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

const maxTransportFrame = 1 << 20

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	service := logger.IsService()
	if err := logger.Init(cfg.LogLevel, service); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	if cfg.Source != "" {
		logger.Debug().Str("file", cfg.Source).Msg("Config loaded")
	}

	pidFile := pid.Resolve(cfg.PIDFile)
	if err := pid.Write(pidFile); err != nil {
		logger.Error().Err(err).Str("file", pidFile).Msg("failed to write PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(pidFile); err != nil {
			logger.Warn().Err(err).Msg("failed to remove PID file")
		}
	}()

	hist, err := history.New(history.Config(cfg.History), logger.Default())
	if err != nil {
		logError(err).Msg("failed to open history")
		return 1
	}
	defer func() {
		if err := hist.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close history")
		}
	}()

	mon := monitor.New(transport.New(transport.Options{ReadLimit: maxTransportFrame}))
	if err := mon.Init(cfg.Monitor); err != nil {
		logError(err).Msg("failed to initialize monitor")
		return 1
	}
	defer func() {
		if err := mon.Deinit(); err != nil {
			logger.Warn().Err(err).Msg("failed to deinitialize monitor")
		}
	}()

	if err := mon.RegisterCallback(onEvent, hist); err != nil {
		logger.Error().Err(err).Msg("failed to register event handler")
		return 1
	}

	if cfg.Monitor.AutoStart {
		if err := mon.Start(); err != nil {
			logError(err).Msg("failed to start monitor")
			return 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if cfg.Console && !service && isatty.IsTerminal(os.Stdin.Fd()) {
		shell := console.New(mon, hist, os.Stdout)
		if _, err := shell.Run(ctx, os.Stdin); err != nil {
			logger.Error().Err(err).Msg("console input failed")
		}
	} else {
		<-ctx.Done()
	}

	if err := mon.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to stop monitor")
	}
	logger.Info().Msg("Exiting...")

	return 0
}

func onEvent(ev monitor.Event, userCtx any) {
	hist, _ := userCtx.(history.Recorder)

	switch ev.Type {
	case monitor.EventDataReceived:
		if hist != nil && ev.Snapshot.Valid {
			hist.Record(ev.Snapshot)
		}
		logger.Debug().
			Str("timestamp", ev.Snapshot.Timestamp).
			Float64("cpu_usage", ev.Snapshot.CPU.AverageUsage()).
			Float64("temp_tj", ev.Snapshot.Temperature.TJ).
			Float64("gpu_load", ev.Snapshot.GPU.Load3D).
			Msg("Telemetry received")
	case monitor.EventError:
		logger.Warn().Err(ev.Err).Str("state", ev.State.String()).Msg("Monitor error")
	default:
		logger.Info().Str("event", ev.Type.String()).Str("state", ev.State.String()).Msg("Monitor event")
	}
}

// logError attaches the error code when err carries one
func logError(err error) *logger.LogEvent {
	var coded errors.Error
	if errors.As(err, &coded) {
		return logger.ErrorWithCode(coded)
	}

	ev := logger.Error()
	ev.Err(err)

	return ev
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
