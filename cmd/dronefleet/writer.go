package main

import (
	"io"
	"strings"
	"sync"

	"dronefleet/internal/config"
	"dronefleet/internal/sim"
)

// namedWriter is a sink with the name used in logs.
type namedWriter struct {
	name   string
	writer sim.TelemetryWriter
}

// newWriters builds the sinks enabled in cfg. The TUI is only started when a
// commander is given. It returns the writers and a cleanup function to close
// any resources.
func newWriters(cfg *config.Config, commander sim.Commander) ([]namedWriter, func(), error) {
	var (
		writers []namedWriter
		closers []io.Closer
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}
	add := func(name string, w sim.TelemetryWriter) {
		writers = append(writers, namedWriter{name: name, writer: w})
		if c, ok := w.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	stdout, err := sim.NewStdoutWriter(cfg.Sinks.Stdout)
	if err != nil {
		return nil, nil, err
	}
	if stdout != nil {
		add("stdout", stdout)
	}

	if cfg.Sinks.LogFile != "" {
		fw, err := sim.NewFileWriter(cfg.Sinks.LogFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		add("file", fw)
	}

	if g := cfg.Sinks.Greptime; g.Endpoint != "" {
		gw, err := sim.NewGreptimeDBWriter(g.Endpoint, g.Database, g.Table)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		add("greptime", gw)
	}

	if cfg.Sinks.TUI && commander != nil {
		add("tui", sim.NewTUIWriter(cfg.ClusterID, commander))
	}

	return writers, cleanup, nil
}

// lineLogger receives whole log lines.
type lineLogger interface {
	Log(line string)
}

// tuiLogWriter feeds slog output into the TUI event pane. Lines written
// before a TUI is attached are dropped.
type tuiLogWriter struct {
	mu  sync.Mutex
	out lineLogger
}

func (l *tuiLogWriter) attach(out lineLogger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

func (l *tuiLogWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
			l.out.Log(line)
		}
	}
	return len(p), nil
}
