package mcpserver

import (
	"testing"

	"github.com/opsguard/shellgate/internal/sshpool"
)

func TestSSHValidationProfileKnownShells(t *testing.T) {
	cases := []struct {
		shellType sshpool.ShellType
		name      string
	}{
		{sshpool.ShellBash, "ssh-bash"},
		{sshpool.ShellSh, "ssh-sh"},
		{sshpool.ShellPowerShell, "ssh-powershell"},
		{sshpool.ShellCmd, "ssh-cmd"},
	}
	for _, c := range cases {
		profile := sshValidationProfile(c.shellType)
		if profile.Name != c.name {
			t.Errorf("sshValidationProfile(%s).Name = %q, want %q", c.shellType, profile.Name, c.name)
		}
		if !profile.Enabled {
			t.Errorf("sshValidationProfile(%s) is not enabled", c.shellType)
		}
	}
}

func TestSSHValidationProfileUnknownIsMostRestrictive(t *testing.T) {
	unknown := sshValidationProfile(sshpool.ShellUnknown)
	other := sshValidationProfile("")

	if unknown.Name != other.Name {
		t.Fatalf("empty/unrecognized shell type did not fall back to the unknown profile")
	}

	for _, known := range []sshpool.ShellType{sshpool.ShellBash, sshpool.ShellCmd, sshpool.ShellPowerShell} {
		for _, op := range sshValidationProfile(known).BlockedOperators {
			found := false
			for _, uop := range unknown.BlockedOperators {
				if op == uop {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("unknown profile is missing operator %q blocked for %s", op, known)
			}
		}
	}
}

func TestSSHExecuteRejectsBlockedOperator(t *testing.T) {
	gw := newTestGateway(t)
	profile := sshValidationProfile(sshpool.ShellBash)
	if _, err := gw.Engine.Validate(profile, "echo hi | cat", "", nil, nil); err == nil {
		t.Fatal("expected the policy engine to reject a piped command bound for an SSH session")
	}
}
