package io

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = &logrus.Logger{
	Out: os.Stderr,
	Formatter: &logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	},
	Hooks: make(logrus.LevelHooks),
	Level: logrus.InfoLevel,
}

// NamedLogger creates a package logger. All named loggers share one output
// and one level, so SetLogOutput and SetLogLevel affect every package.
func NamedLogger(name string) *logrus.Entry {
	return logger.WithField("pkg", name)
}

// SetLogOutput redirects all package loggers to w.
func SetLogOutput(w io.Writer) { logger.SetOutput(w) }

// SetLogLevel sets the level of all package loggers. level is one of the
// names understood by logrus.ParseLevel ("debug", "info", "warn", ...).
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}
