package usecase

import (
	"errors"
	"fmt"

	"CryptoAssist/pkg/config"
)

var (
	// ErrStartupConfig is fatal: a required collaborator or setting is missing.
	ErrStartupConfig = config.ErrStartupConfig
	// ErrAlreadyRunning is returned by Start while a session loop is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNoBackend is returned by manual operations when no reasoning backend is wired.
	ErrNoBackend = errors.New("reasoning backend not configured")
)

// IterationError abandons one loop iteration and feeds the retry policy.
type IterationError struct {
	Step string
	Err  error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration failed at %s: %v", e.Step, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }
