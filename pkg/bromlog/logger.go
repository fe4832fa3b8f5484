// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bromlog provides the logger used across the bootrom core.
package bromlog

import (
	"log"
	"os"
)

// Logger describes a logger to be used in the bootrom core.
type Logger interface {
	// Warnf logs a warning message.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message.
	Errorf(format string, args ...interface{})

	// Fatalf logs a fatal message. Unlike the teacher's logger, it does not
	// call os.Exit: the boot controller is the only thing allowed to
	// terminate a boot attempt, via HaltAndCatchFire, and it must do so
	// after publishing the boot-status word, not before.
	Fatalf(format string, args ...interface{})
}

// DefaultLogger is the logger used by default everywhere within the core.
var DefaultLogger Logger

func init() {
	DefaultLogger = logWrapper{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type logWrapper struct {
	Logger *log.Logger
}

func (logger logWrapper) Warnf(format string, args ...interface{}) {
	logger.Logger.Printf("[bootrom][WARN] "+format, args...)
}

func (logger logWrapper) Errorf(format string, args ...interface{}) {
	logger.Logger.Printf("[bootrom][ERROR] "+format, args...)
}

func (logger logWrapper) Fatalf(format string, args ...interface{}) {
	logger.Logger.Printf("[bootrom][FATAL] "+format, args...)
}

// Warnf logs a warning message on the default logger.
func Warnf(format string, args ...interface{}) {
	DefaultLogger.Warnf(format, args...)
}

// Errorf logs an error message on the default logger.
func Errorf(format string, args ...interface{}) {
	DefaultLogger.Errorf(format, args...)
}

// Fatalf logs a fatal message on the default logger.
func Fatalf(format string, args ...interface{}) {
	DefaultLogger.Fatalf(format, args...)
}
