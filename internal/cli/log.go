// Package cli implements the gaea-mcp command-line interface.
//
// Commands edit .terrain project files through the same editor the tool
// server uses, so a file changed from the shell and one changed by a
// connected agent go through one lock. The CLI is built on cobra and logs
// with charmbracelet/log; --verbose switches to debug output.
//
// # Commands
//
//   - create, info: make and inspect projects
//   - node, connect, disconnect, types: edit the node graph
//   - graph: export the graph as DOT or SVG
//   - build, detect: run Gaea.Swarm
//   - serve: expose every operation as tools over stdio or HTTP
//   - cache: manage rendered graph cache
//
// # Logging
//
// Loggers travel in the command context; see withLogger.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a logger writing to w at level, with short
// "15:04:05.00" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long an operation took.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Built world.terrain (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for loggerFromContext.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
