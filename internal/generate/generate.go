package generate

import (
	"context"
	"errors"
)

// #region interface

// Generator produces answer text from a prompt and its retrieved evidence.
// Implementations may fail; callers wrap them in guard.Invoke.
type Generator interface {
	Generate(ctx context.Context, prompt, evidence string) (string, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, prompt, evidence string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt, evidence string) (string, error) {
	return f(ctx, prompt, evidence)
}

// ErrEmptyOutput is returned when a provider answers with no text.
var ErrEmptyOutput = errors.New("generator returned empty output")

// ErrNoGenerator reports that no model is configured.
var ErrNoGenerator = errors.New("no generator configured")

// #endregion interface
