package bwfs

import "github.com/sirupsen/logrus"

// Option configures an Engine at construction time, following the same
// functional-options shape the teacher uses for Superblock construction.
type Option func(e *Engine) error

// WithLogger overrides the logrus logger an Engine writes to: its
// construction messages and Lookup's debug-level entry line. Defaults to
// logrus.StandardLogger() when omitted.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}
