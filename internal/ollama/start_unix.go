// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package ollama

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// findServerExecutable searches for the ollama binary in PATH and common
// installation locations.
func findServerExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	possible := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/ollama/ollama",
	}
	if home := os.Getenv("HOME"); home != "" {
		possible = append(possible,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	possible = append(possible, "/Applications/Ollama.app/Contents/Resources/ollama")

	for _, p := range possible {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", &ClientError{
		Type:    ErrTypeNotRunning,
		Message: "ollama not found in PATH or common installation directories",
	}
}

// startServerProcess starts the local inference server in the background
// and waits for it to become reachable.
func (c *Client) startServerProcess(ctx context.Context) error {
	path, err := findServerExecutable()
	if err != nil {
		return err
	}

	cmd := exec.Command(path, "serve")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to start inference server", Cause: err}
	}
	// Detach; the server outlives this process.
	go cmd.Wait()

	return c.waitUntilRunning(ctx, 10*time.Second)
}
