// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reasoning separates model deliberation text from answer text.
//
// Local models mark their reasoning with differing conventions: paired
// markup tags (<think>...</think>), emphasised labels (**Thinking:** ...
// **Response:** ...), or bracketed labels ([Thinking] ... [Response]).
// Extract applies a cascade of heuristic passes over the raw text, first
// match wins. The extractor is pure and total: no I/O, no state, no panic
// for any input.
//
// The pass list is an ordered table so new tag dialects are added by
// appending an entry, not by editing control flow.
package reasoning

import (
	"regexp"
	"strings"
)

// =============================================================================
// RESULT TYPE
// =============================================================================

// Result is the outcome of one extraction.
type Result struct {
	// Reasoning is the extracted deliberation text. Nil when no pass
	// matched; presence is distinguishable from emptiness.
	Reasoning *string

	// Answer is the remaining answer text, whitespace-trimmed.
	Answer string
}

// HasReasoning reports whether any reasoning was found.
func (r Result) HasReasoning() bool {
	return r.Reasoning != nil
}

// =============================================================================
// PASS TABLE
// =============================================================================

// tagNames are the synonyms recognized inside paired markup tags.
const tagNames = `(?:think|thinking|reasoning|thought|internal[ _-]?thoughts?|reflection)`

// labelNames are the synonyms recognized as a leading reasoning label.
const labelNames = `(?:thinking|thought|reasoning|internal\s+thoughts?)`

// terminatorNames are the synonyms recognized as an answer label.
const terminatorNames = `(?:response|answer|output|reply)`

var (
	// pairedTagRe matches a complete <think>...</think> style block.
	pairedTagRe = regexp.MustCompile(`(?is)<\s*` + tagNames + `\s*>(.*?)<\s*/\s*` + tagNames + `\s*>`)

	// openTagRe matches a dangling opening tag with no close yet, as seen
	// mid-stream while the model is still thinking.
	openTagRe = regexp.MustCompile(`(?is)<\s*` + tagNames + `\s*>`)

	// labeledLeadRe matches an emphasis-wrapped or plain leading label,
	// e.g. "**Thinking:**" or "Reasoning:". Plain labels require the
	// colon so a bare word never triggers the pass.
	labeledLeadRe = regexp.MustCompile(`(?i)^\s*(?:[*_]{1,3}\s*` + labelNames + `\s*:?\s*[*_]{1,3}\s*:?|` + labelNames + `\s*:)\s*`)

	// labeledTermRe matches the terminating answer label.
	labeledTermRe = regexp.MustCompile(`(?i)(?:[*_]{1,3}\s*` + terminatorNames + `\s*:?\s*[*_]{1,3}\s*:?|\b` + terminatorNames + `\s*:)\s*`)

	// bracketLeadRe and bracketTermRe are the square-bracket dialect,
	// e.g. "[Thinking] ... [Response] ...".
	bracketLeadRe = regexp.MustCompile(`(?i)^\s*\[\s*` + labelNames + `\s*\]\s*:?\s*`)
	bracketTermRe = regexp.MustCompile(`(?i)\[\s*` + terminatorNames + `\s*\]\s*:?\s*`)
)

// passFunc attempts one extraction convention. ok is false when the
// convention does not appear in the text.
type passFunc func(text string) (reasoning, answer string, ok bool)

// passes is the cascade, in priority order. First match wins and skips the
// remaining passes.
var passes = []struct {
	name string
	fn   passFunc
}{
	{"tag-delimited", extractTagged},
	{"labeled-block", func(text string) (string, string, bool) {
		return splitLabeled(text, labeledLeadRe, labeledTermRe)
	}},
	{"bracketed-label", func(text string) (string, string, bool) {
		return splitLabeled(text, bracketLeadRe, bracketTermRe)
	}},
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract splits raw model output into reasoning and answer text. It is
// invoked on the cumulative streamed text on every chunk, so it must be
// cheap and produce the same split for the same input every time.
func Extract(raw string) Result {
	text := strings.TrimSpace(raw)

	for _, p := range passes {
		if reasoning, answer, ok := p.fn(text); ok {
			reasoning = strings.TrimSpace(reasoning)
			return Result{
				Reasoning: &reasoning,
				Answer:    strings.TrimSpace(answer),
			}
		}
	}

	return Result{Answer: text}
}

// extractTagged handles paired markup tags. All non-overlapping matches are
// extracted; fragments are concatenated in document order separated by a
// blank line, and the matched spans are removed from the answer.
func extractTagged(text string) (string, string, bool) {
	matches := pairedTagRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		// A dangling opening tag means the model is mid-thought:
		// everything after it is reasoning so partial deliberation can
		// be shown live.
		if loc := openTagRe.FindStringIndex(text); loc != nil {
			return text[loc[1]:], text[:loc[0]], true
		}
		return "", "", false
	}

	var fragments []string
	var answer strings.Builder
	prev := 0
	for _, m := range matches {
		answer.WriteString(text[prev:m[0]])
		prev = m[1]

		fragment := strings.TrimSpace(text[m[2]:m[3]])
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	answer.WriteString(text[prev:])

	return strings.Join(fragments, "\n\n"), answer.String(), true
}

// splitLabeled handles leading-label conventions: a reasoning label at the
// start of the text, interior text up to a terminating answer label (or end
// of text), and the answer after the terminator.
func splitLabeled(text string, lead, term *regexp.Regexp) (string, string, bool) {
	loc := lead.FindStringIndex(text)
	if loc == nil || loc[0] != 0 {
		return "", "", false
	}

	rest := text[loc[1]:]
	if tloc := term.FindStringIndex(rest); tloc != nil {
		return rest[:tloc[0]], rest[tloc[1]:], true
	}
	return rest, "", true
}
