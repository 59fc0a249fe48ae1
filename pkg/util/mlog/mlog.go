package mlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log wraps logrus.Logger and holds information of logging file.
type Log struct {
	*logrus.Logger

	file     *os.File
	location string
	mu       sync.Mutex
}

// New creates Log object.
// TODO: logging with linux logrotate.
func New(location string) (*Log, error) {
	l := &Log{}

	l.Logger = logrus.New()
	l.location = location

	if l.location == "stderr" {
		l.Out = os.Stderr
		l.file = nil
	} else {
		f, err := os.OpenFile(location, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		l.Out = f
		l.file = f
	}

	return l, nil
}

var (
	global   *Log
	globalMu sync.Mutex
)

// Init creates the global log object with the given location.
func Init(location string) error {
	l, err := New(location)
	if err != nil {
		return err
	}

	globalMu.Lock()
	global = l
	globalMu.Unlock()

	return nil
}

// GetLogger returns the global logger.
// Returns nil if the global log object is not initialized yet.
func GetLogger() *logrus.Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil
	}
	return global.Logger
}

// GetPackageLogger returns a logger entry with the given package field.
// Falls back to a stderr logger if Init has not been called yet.
func GetPackageLogger(pkg string) *logrus.Entry {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		global, _ = New("stderr")
	}
	return global.Logger.WithField("package", pkg)
}

// GetMethodLogger returns a logger entry with the given method field.
func GetMethodLogger(logger *logrus.Entry, method string) *logrus.Entry {
	return logger.WithField("method", method)
}

// GetFunctionLogger returns a logger entry with the given function field.
func GetFunctionLogger(logger *logrus.Entry, function string) *logrus.Entry {
	return logger.WithField("function", function)
}
