package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/bastion/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"AuditID", id.NewAuditID, "audit_"},
		{"BootstrapID", id.NewBootstrapID, "boot_"},
		{"LockToken", id.NewLockToken, "lock_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewAuditID()
	parsed, err := id.ParseAuditID(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestCrossPrefixRejection(t *testing.T) {
	boot := id.NewBootstrapID()
	if _, err := id.ParseAuditID(boot.String()); err == nil {
		t.Fatal("expected error parsing boot ID as audit ID")
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "not-a-typeid", "audit_"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil String() = %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("nil Value() = %v, %v", v, err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewAuditID()
	b, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var got id.ID
	if err := got.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if got.String() != original.String() {
		t.Errorf("got %s, want %s", got, original)
	}
}

func TestScan(t *testing.T) {
	original := id.NewAuditID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatal(err)
	}
	if fromString.String() != original.String() {
		t.Errorf("scan string mismatch")
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNil.IsNil() {
		t.Error("scan nil should yield Nil")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
