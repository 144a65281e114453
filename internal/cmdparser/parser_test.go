package cmdparser

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantProgram string
		wantArgs    []string
		wantErr     bool
	}{
		{name: "empty", input: "", wantProgram: "", wantArgs: nil},
		{name: "whitespace only", input: "   \t ", wantProgram: "", wantArgs: nil},
		{name: "simple", input: "ls -la /tmp", wantProgram: "ls", wantArgs: []string{"-la", "/tmp"}},
		{name: "double quoted arg", input: `echo "hello world"`, wantProgram: "echo", wantArgs: []string{"hello world"}},
		{name: "single quoted arg", input: `echo 'hello world'`, wantProgram: "echo", wantArgs: []string{"hello world"}},
		{name: "escaped quote", input: `echo "say \"hi\""`, wantProgram: "echo", wantArgs: []string{`say "hi"`}},
		{name: "escaped backslash", input: `echo "a\\b"`, wantProgram: "echo", wantArgs: []string{`a\b`}},
		{name: "unclosed double quote", input: `echo "oops`, wantErr: true},
		{name: "unclosed single quote", input: `echo 'oops`, wantErr: true},
		{name: "windows path with spaces", input: `C:\Program Files\Git\bin\bash.exe --version`, wantProgram: `C:\Program Files\Git\bin\bash.exe`, wantArgs: []string{"--version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, args, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) err = nil, want error", tt.input)
				}
				var unclosed *ErrUnclosedQuote
				if !errors.As(err, &unclosed) {
					t.Errorf("Parse(%q) err = %v, want ErrUnclosedQuote", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected err: %v", tt.input, err)
			}
			if program != tt.wantProgram {
				t.Errorf("Parse(%q) program = %q, want %q", tt.input, program, tt.wantProgram)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("Parse(%q) args = %#v, want %#v", tt.input, args, tt.wantArgs)
			}
		})
	}
}

// TestParseRoundTrip is the property test from spec §8.1: for any token
// list whose members contain no unescaped quote or whitespace, parsing
// the space-joined form recovers the same tokens.
func TestParseRoundTrip(t *testing.T) {
	cases := [][]string{
		{"git", "commit", "-m", "msg"},
		{"ls"},
		{"rsync", "-av", "src/", "dst/"},
	}
	for _, tokens := range cases {
		joined := ""
		for i, tok := range tokens {
			if i > 0 {
				joined += " "
			}
			joined += tok
		}
		program, args, err := Parse(joined)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected err: %v", joined, err)
		}
		got := append([]string{program}, args...)
		if !reflect.DeepEqual(got, tokens) {
			t.Errorf("round trip failed: got %#v, want %#v", got, tokens)
		}
	}
}
