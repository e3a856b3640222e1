// Package respond builds the emotion-conditioned empathetic reply by driving
// an external text-generation engine.
package respond

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Generator produces text for a single-shot prompt. No conversation history,
// no streaming.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("no generator configured")
	}
	return f(ctx, prompt)
}

// CommandGenerator runs a local model binary (ollama-style: the prompt goes
// to stdin, the completion comes back on stdout). A non-zero exit, an error
// stream or a context timeout are all reported uniformly as errors; the
// synthesizer turns them into the fallback reply.
type CommandGenerator struct {
	binPath string
	model   string
	timeout time.Duration
}

// NewCommandGenerator constructs a generator for the given binary and model.
func NewCommandGenerator(binPath, model string, timeout time.Duration) (*CommandGenerator, error) {
	if strings.TrimSpace(binPath) == "" {
		return nil, fmt.Errorf("generator binary path required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("generator model required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CommandGenerator{binPath: binPath, model: model, timeout: timeout}, nil
}

func (g *CommandGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binPath, "run", g.model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generation timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("run %s: %w: %s", g.binPath, err, strings.TrimSpace(stderr.String()))
	}

	response := strings.TrimSpace(stdout.String())
	if response == "" {
		return "", fmt.Errorf("empty generation output")
	}
	return response, nil
}
