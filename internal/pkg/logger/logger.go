package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logrus implements ports.Logger on top of a logrus entry.
type Logrus struct {
	entry *logrus.Entry
}

// New creates a logger writing text records to w. Debug records are only
// emitted when verbose is set.
func New(w io.Writer, verbose bool) *Logrus {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return &Logrus{entry: logrus.NewEntry(l)}
}

// NewStd creates a Logrus writing to stderr.
func NewStd(verbose bool) *Logrus {
	return New(os.Stderr, verbose)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logrus {
	return New(io.Discard, false)
}

// With returns a child logger carrying the given field on every record.
func (l *Logrus) With(key string, value interface{}) *Logrus {
	return &Logrus{entry: l.entry.WithField(key, value)}
}

func (l *Logrus) Debug(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *Logrus) Info(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *Logrus) Warn(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *Logrus) Error(msg string, err error, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}
