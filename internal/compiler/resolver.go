package compiler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CommandResolver resolves workspace dependencies by running the package
// manager
type CommandResolver struct {
	runner  Runner
	builder *CommandBuilder
	command []string
	log     *zap.Logger
}

// NewCommandResolver creates a resolver running command in the workspace
func NewCommandResolver(runner Runner, builder *CommandBuilder, command []string, log *zap.Logger) *CommandResolver {
	return &CommandResolver{
		runner:  runner,
		builder: builder,
		command: command,
		log:     log,
	}
}

// Resolve runs the resolution command in dir
func (r *CommandResolver) Resolve(ctx context.Context, dir string) error {
	var stderr []string

	code, err := r.runner.Run(ctx, r.builder.Build(r.command, dir), LineHandlers{
		Stdout: func(line string) { r.log.Debug(line) },
		Stderr: func(line string) {
			r.log.Warn(line)
			stderr = append(stderr, line)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", r.command[0], err)
	}

	if !IsSuccess(code) {
		return fmt.Errorf("dependency resolution failed (exit code %d): %s", code, strings.Join(stderr, "\n"))
	}

	return nil
}
