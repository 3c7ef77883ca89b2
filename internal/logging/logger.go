// Package logging builds the engine-wide structured logger, in the
// DimaJoyti/go-coffee idiom: one *zap.SugaredLogger constructed at
// startup and passed by reference into every component that needs it.
package logging

import "go.uber.org/zap"

// New constructs a production zap logger (JSON, info level) and
// returns its sugared form.
func New() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// NewDevelopment constructs a human-readable console logger, used by
// tests and local runs.
func NewDevelopment() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}
