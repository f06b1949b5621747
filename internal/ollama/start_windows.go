// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

package ollama

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// findServerExecutable searches for the ollama binary in PATH and common
// installation locations on Windows.
func findServerExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	var possible []string
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		possible = append(possible,
			filepath.Join(localAppData, "Programs", "Ollama", "ollama.exe"))
	}
	if programFiles := os.Getenv("ProgramFiles"); programFiles != "" {
		possible = append(possible,
			filepath.Join(programFiles, "Ollama", "ollama.exe"))
	}

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
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to start inference server", Cause: err}
	}
	go cmd.Wait()

	return c.waitUntilRunning(ctx, 10*time.Second)
}
