package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/verisella/authcore/policy"
)

func testHasher(t *testing.T) *Argon2 {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Memory = minMemoryKB // keep tests fast
	a, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return a
}

func TestHashVerifyRoundTrip(t *testing.T) {
	a := testHasher(t)
	hash, err := a.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC format, got %s", hash)
	}

	ok, err := a.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = a.Verify("wrong password", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	a := testHasher(t)
	if _, err := a.Verify("whatever", "$bcrypt$nope"); err == nil {
		t.Fatal("expected malformed hash error")
	}
}

func TestNeedsUpgradeOnStrongerParams(t *testing.T) {
	weak := testHasher(t)
	hash, err := weak.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strongCfg := DefaultConfig()
	strongCfg.Time = 4
	strong, err := NewArgon2(strongCfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	upgrade, err := strong.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected upgrade for weaker stored hash")
	}

	upgrade, err = weak.NeedsUpgrade(hash)
	if err != nil || upgrade {
		t.Fatalf("expected no upgrade for identical params, upgrade=%v err=%v", upgrade, err)
	}
}

func TestValidateComposition(t *testing.T) {
	p := policy.PasswordPolicy{
		MinLength:          8,
		RequireUppercase:   true,
		RequireNumber:      true,
		RequireSpecialChar: true,
	}

	cases := []struct {
		name string
		pw   string
		ok   bool
	}{
		{"all rules met", "Valid#Pass9", true},
		{"too short", "V#9a", false},
		{"missing uppercase", "valid#pass9", false},
		{"missing number", "Valid#Passx", false},
		{"missing special", "ValidPass99", false},
	}
	for _, tc := range cases {
		err := Validate(tc.pw, p)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrPolicy) {
			t.Fatalf("%s: expected ErrPolicy, got %v", tc.name, err)
		}
	}
}
