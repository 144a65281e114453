package unicodesec

import "testing"

func TestScreen(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		isPowerShell bool
		wantKind     ThreatKind
		wantASCII    string
	}{
		{name: "clean command", input: "ls -la /tmp", wantKind: ThreatNone},
		{name: "fullwidth pipe", input: "dir ｜ del", wantKind: ThreatHomoglyphOperator, wantASCII: "|"},
		{name: "box drawing vertical", input: "cat file │ grep x", wantKind: ThreatHomoglyphOperator, wantASCII: "|"},
		{name: "zero width space", input: "rm​-rf", wantKind: ThreatZeroWidthOrBiDi},
		{name: "bidi override", input: "echo ‮oops", wantKind: ThreatZeroWidthOrBiDi},
		{name: "dangerous control", input: "echo\x01hi", wantKind: ThreatDangerousControl},
		{name: "tab is fine", input: "echo\thi", wantKind: ThreatNone},
		{name: "smart quote outside powershell", input: "echo ‘hi’", isPowerShell: false, wantKind: ThreatNone},
		{name: "smart quote inside powershell", input: "echo ‘hi’", isPowerShell: true, wantKind: ThreatSmartQuote},
		{name: "stray combining mark", input: "á́b", wantKind: ThreatCombiningOrInvisible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Screen(tt.input, tt.isPowerShell)
			if tt.wantKind == ThreatNone {
				if got != nil {
					t.Fatalf("Screen(%q) = %+v, want nil", tt.input, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Screen(%q) = nil, want kind %v", tt.input, tt.wantKind)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Screen(%q).Kind = %v, want %v", tt.input, got.Kind, tt.wantKind)
			}
			if tt.wantASCII != "" && got.ASCIILike != tt.wantASCII {
				t.Errorf("Screen(%q).ASCIILike = %q, want %q", tt.input, got.ASCIILike, tt.wantASCII)
			}
		})
	}
}

func TestFindingError(t *testing.T) {
	f := Finding{Kind: ThreatHomoglyphOperator, Rune: '｜', ASCIILike: "|"}
	msg := f.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if !contains(msg, "Unicode variant of blocked operator") {
		t.Errorf("expected disclosure phrase, got %q", msg)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
