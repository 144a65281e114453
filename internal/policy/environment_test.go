package policy

import "testing"

func TestEnvironmentManagerBlocklistSubstring(t *testing.T) {
	m := NewEnvironmentManager()
	if err := m.Validate(map[string]string{"MY_API_KEY_STORE": "x"}); err == nil {
		t.Fatal("expected substring match against API_KEY to be rejected")
	}
	if err := m.Validate(map[string]string{"HOME": "/root"}); err != nil {
		t.Errorf("unexpected rejection of benign var: %v", err)
	}
}

func TestEnvironmentManagerAllowlistMode(t *testing.T) {
	m := NewEnvironmentManager()
	m.Allowlist = []string{"HOME", "LANG"}
	if err := m.Validate(map[string]string{"HOME": "/root"}); err != nil {
		t.Errorf("unexpected rejection of allowlisted var: %v", err)
	}
	if err := m.Validate(map[string]string{"RANDOM_VAR": "x"}); err == nil {
		t.Fatal("expected rejection of non-allowlisted var")
	}
}

func TestEnvironmentManagerValueChecks(t *testing.T) {
	m := NewEnvironmentManager()
	if err := m.Validate(map[string]string{"X": "has\x00nul"}); err == nil {
		t.Fatal("expected rejection of NUL byte")
	}
	if err := m.Validate(map[string]string{"X": "has\x01control"}); err == nil {
		t.Fatal("expected rejection of control character")
	}
	if err := m.Validate(map[string]string{"X": "tab\tnewline\nfine"}); err != nil {
		t.Errorf("tab/newline should be permitted: %v", err)
	}
}

func TestEnvironmentManagerMapSizeCap(t *testing.T) {
	m := NewEnvironmentManager()
	m.MapSizeCap = 2
	env := map[string]string{"A": "1", "B": "2", "C": "3"}
	if err := m.Validate(env); err == nil {
		t.Fatal("expected rejection for exceeding map size cap")
	}
}

func TestEnvironmentManagerValueByteCap(t *testing.T) {
	m := NewEnvironmentManager()
	m.ValueByteCap = 4
	if err := m.Validate(map[string]string{"X": "toolong"}); err == nil {
		t.Fatal("expected rejection for value exceeding byte cap")
	}
}
