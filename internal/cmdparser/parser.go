// Package cmdparser splits a raw command string into a program and its
// arguments, honoring quotes and backslash escapes. It deliberately knows
// nothing about shell operators — that detection happens earlier, in the
// policy engine's operator-check stage — so an unclosed quote here is
// treated as a security-sensitive parse failure rather than silently
// swallowed.
package cmdparser

import (
	"fmt"
	"strings"
)

// ErrUnclosedQuote is returned when the input ends while a quote is still
// open. An unclosed quote can swallow an injection attempt (the rest of
// the string becomes "inside" the quote and is never tokenized as
// separate arguments), so this is a distinct, security-sensitive error.
type ErrUnclosedQuote struct {
	Quote byte
}

func (e *ErrUnclosedQuote) Error() string {
	return fmt.Sprintf("unclosed %q quote in command", e.Quote)
}

// windowsExecutableSuffixes are the extensions that terminate greedy
// program-name aggregation when reconstructing a Windows path containing
// spaces, e.g. `C:\Program Files\Git\bin\bash.exe --version`.
var windowsExecutableSuffixes = []string{".exe", ".cmd", ".bat"}

// Parse splits command into (program, args). Empty or whitespace-only
// input returns ("", nil). Quotes may be single or double; backslash
// escapes the following '"', '\'', or '\\' character; any other character
// following a backslash keeps the backslash literally (it is not a
// recognized escape).
func Parse(command string) (program string, args []string, err error) {
	tokens, err := tokenize(command)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, nil
	}

	program, rest := aggregateWindowsPath(tokens)
	return program, rest, nil
}

func tokenize(command string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	haveToken := false

	var quote byte // 0 = not in quote, else '\'' or '"'
	i := 0
	n := len(command)

	flush := func() {
		if haveToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for i < n {
		c := command[i]

		if quote != 0 {
			if c == '\\' && i+1 < n && (command[i+1] == '"' || command[i+1] == '\'' || command[i+1] == '\\') {
				cur.WriteByte(command[i+1])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
				i++
				continue
			}
			cur.WriteByte(c)
			haveToken = true
			i++
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			haveToken = true
			i++
		case c == '\\' && i+1 < n && (command[i+1] == '"' || command[i+1] == '\'' || command[i+1] == '\\'):
			cur.WriteByte(command[i+1])
			haveToken = true
			i += 2
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
			i++
		default:
			cur.WriteByte(c)
			haveToken = true
			i++
		}
	}

	if quote != 0 {
		return nil, &ErrUnclosedQuote{Quote: quote}
	}
	flush()

	return tokens, nil
}

// aggregateWindowsPath reconstructs a program path that was split on
// spaces (e.g. "C:\Program Files\Git\bin\bash.exe" tokenized into three
// pieces by the whitespace above) by greedily absorbing leading tokens
// into the program name until a token ends in a recognized executable
// suffix, or the accumulated program no longer contains a path separator.
func aggregateWindowsPath(tokens []string) (string, []string) {
	first := tokens[0]
	if !strings.ContainsAny(first, `\/`) {
		return first, tokens[1:]
	}

	program := first
	idx := 1
	for idx < len(tokens) {
		if hasExecutableSuffix(program) {
			break
		}
		if !strings.ContainsAny(program, `\/`) {
			break
		}
		program = program + " " + tokens[idx]
		idx++
		if hasExecutableSuffix(program) {
			break
		}
	}
	return program, tokens[idx:]
}

func hasExecutableSuffix(s string) bool {
	lower := strings.ToLower(s)
	for _, suffix := range windowsExecutableSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
