// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the chat core.
package util

import "strings"

// TruncateWithMarker caps s at max runes and appends marker when the cap
// was applied. A string at or under the cap passes through unchanged.
func TruncateWithMarker(s string, max int, marker string) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + marker
}

// WordCount returns the number of whitespace-separated words in s.
// Used to estimate token counts when the server reports none.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
