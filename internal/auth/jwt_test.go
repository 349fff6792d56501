package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	s := NewJWTSigner(priv, "vaultd-test", 15*time.Minute)

	tok, exp, err := s.IssueToken("alice", "dev-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired")
	}

	claims, err := s.ParseAndValidate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != "alice" || claims.DeviceID != "dev-1" {
		t.Fatalf("claims %+v", claims)
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	privA, _, _ := GenerateEd25519()
	privB, _, _ := GenerateEd25519()
	a := NewJWTSigner(privA, "vaultd-test", time.Minute)
	b := NewJWTSigner(privB, "vaultd-test", time.Minute)

	tok, _, err := a.IssueToken("alice", "dev-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.ParseAndValidate(tok); err == nil {
		t.Fatal("token signed by another key was accepted")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	priv, _, _ := GenerateEd25519()
	issue := NewJWTSigner(priv, "other-issuer", time.Minute)
	verify := NewJWTSigner(priv, "vaultd-test", time.Minute)

	tok, _, err := issue.IssueToken("alice", "dev-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verify.ParseAndValidate(tok); err == nil {
		t.Fatal("token with wrong issuer was accepted")
	}
}
