package repl

import (
	"regexp"
	"strings"
)

// defaultPromptPattern matches interpreter prompts at line start:
// "coffee> ", "node> ", or a bare "> ".
var defaultPromptPattern = regexp.MustCompile(`^[\w.-]*> `)

// ExtractCurrentUnit extracts one complete logical input expression from
// the buffer, using the default prompt pattern. See
// ExtractCurrentUnitWith.
func ExtractCurrentUnit(buffer string, cursor int) (string, error) {
	return ExtractCurrentUnitWith(buffer, cursor, nil)
}

// ExtractCurrentUnitWith scans backward from cursor to the nearest line
// beginning with the prompt pattern, skips the prompt and any following
// whitespace, then consumes one balanced expression forward and returns
// it verbatim, internal newlines included. This reconstructs "what the
// user typed" even when the buffer interleaves prompts and output.
// Fails with ErrNoPrompt when no prompt line precedes the cursor.
func ExtractCurrentUnitWith(buffer string, cursor int, prompt *regexp.Regexp) (string, error) {
	if prompt == nil {
		prompt = defaultPromptPattern
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(buffer) {
		cursor = len(buffer)
	}

	lineStart, ok := findPromptLine(buffer, cursor, prompt)
	if !ok {
		return "", ErrNoPrompt
	}

	loc := prompt.FindStringIndex(buffer[lineStart:])
	pos := lineStart + loc[1]
	// Whitespace immediately after the prompt belongs to it, not the unit.
	for pos < len(buffer) && (buffer[pos] == ' ' || buffer[pos] == '\t') {
		pos++
	}

	return consumeUnit(buffer[pos:]), nil
}

// findPromptLine walks line starts backward from cursor until one
// matches the prompt pattern.
func findPromptLine(buffer string, cursor int, prompt *regexp.Regexp) (int, bool) {
	ls := strings.LastIndexByte(buffer[:cursor], '\n') + 1
	for {
		if loc := prompt.FindStringIndex(buffer[ls:]); loc != nil && loc[0] == 0 {
			return ls, true
		}
		if ls == 0 {
			return 0, false
		}
		ls = strings.LastIndexByte(buffer[:ls-1], '\n') + 1
	}
}

// consumeUnit advances through one balanced expression: the logical line
// continues across newlines while a delimiter pair is open, and ends at
// the first top-level newline, an unbalanced closer, or end of text.
// String literals are honored so delimiters inside them do not count.
func consumeUnit(text string) string {
	depth := 0
	var inStr byte

	i := 0
	for i < len(text) {
		c := text[i]

		if inStr != 0 {
			if c == '\\' && i+1 < len(text) {
				i += 2
				continue
			}
			if c == inStr {
				inStr = 0
			}
			i++
			continue
		}

		switch c {
		case '"', '\'':
			inStr = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				// Stray closer: the unit ends before it.
				return text[:i]
			}
			depth--
		case '\n':
			if depth == 0 {
				return text[:i]
			}
		}
		i++
	}
	return text
}
