// Package binary locates and runs the external media tools.
package binary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrMissing        = errors.New("required binary not found")
	ErrCommandFailure = errors.New("command failed")
	ErrTimeout        = errors.New("command timed out")
)

// Available checks if a binary is available in the system PATH.
func Available(binName string) (string, bool) {
	path, err := exec.LookPath(binName)

	return path, err == nil
}

// Resolve returns path when set, otherwise looks name up in PATH.
func Resolve(path, name string) (string, error) {
	if path != "" {
		if _, err := exec.LookPath(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return path, nil
	}
	found, ok := Available(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, name)
	}
	return found, nil
}

// Version runs "<bin> <flag>" and returns the first line of its output.
func Version(ctx context.Context, bin, flag string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, flag)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", ErrCommandFailure, bin, flag, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
	return line, nil
}
