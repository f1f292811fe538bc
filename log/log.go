// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package log is a thin wrapper around the logrus package used by every
// other package in this module. It exists so that callers embedding the
// store in a larger application can swap the logging backend (or silence it
// entirely) without the core packages importing logrus directly.
package log

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields.
type Fields = logrus.Fields

// Entry aliases logrus.Entry.
type Entry = logrus.Entry

// Logger is the interface used by the store, its backing-store adapter, and
// the CLI driver. The default implementation forwards to logrus; callers may
// supply their own implementation through store.Config.Logger.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})

	Info(...interface{})
	Infof(string, ...interface{})

	Warn(...interface{})
	Warnf(string, ...interface{})

	Error(...interface{})
	Errorf(string, ...interface{})

	Fatal(...interface{})
	Fatalf(string, ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(Fields) Logger

	SetLevel(level string) error
	SetOutput(w io.Writer)
	SetJSONFormatter()

	WithContext(ctx context.Context) Logger
}

type logger struct {
	entry *logrus.Entry
}

// New creates a new Logger backed by a dedicated logrus.Logger instance.
func New() Logger {
	l := logrus.New()
	return logger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger whose output is discarded. Useful for tests and
// for embedders that want to wire their own sink through SetOutput instead.
func Discard() Logger {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

func (l logger) Debug(args ...interface{})            { l.entry.Debug(args...) }
func (l logger) Debugf(f string, args ...interface{}) { l.entry.Debugf(f, args...) }
func (l logger) Info(args ...interface{})             { l.entry.Info(args...) }
func (l logger) Infof(f string, args ...interface{})  { l.entry.Infof(f, args...) }
func (l logger) Warn(args ...interface{})             { l.entry.Warn(args...) }
func (l logger) Warnf(f string, args ...interface{})  { l.entry.Warnf(f, args...) }
func (l logger) Error(args ...interface{})            { l.entry.Error(args...) }
func (l logger) Errorf(f string, args ...interface{}) { l.entry.Errorf(f, args...) }
func (l logger) Fatal(args ...interface{})            { l.entry.Fatal(args...) }
func (l logger) Fatalf(f string, args ...interface{}) { l.entry.Fatalf(f, args...) }

func (l logger) WithField(key string, value interface{}) Logger {
	return logger{entry: l.entry.WithField(key, value)}
}

func (l logger) WithFields(fields Fields) Logger {
	return logger{entry: l.entry.WithFields(fields)}
}

func (l logger) SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.entry.Logger.SetLevel(lvl)
	return nil
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.SetFormatter(&logrus.JSONFormatter{})
}

func (l logger) WithContext(ctx context.Context) Logger {
	return logger{entry: l.entry.WithContext(ctx)}
}
