/*
Package applog wires the process-wide structured logger: zerolog
writing through a rotating file handler (size, age, and backup count
are configured here).

This is unrelated to txnlog's own rotation: txnlog rotates the
transaction audit log by local calendar day, while this package rotates
the operational/diagnostic log by size, the conventional lumberjack
policy.
*/
package applog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger, writing to both stderr and a rotating
// file at path. If path is empty, only stderr is used (handy for
// tests and for ":memory:"-style ephemeral runs).
func New(path string) zerolog.Logger {
	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
}
