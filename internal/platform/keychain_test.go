package platform

import (
	"errors"
	"testing"
)

func TestFileKeychain(t *testing.T) {
	k := &fileKeychain{dir: t.TempDir()}

	if _, err := k.Load("token"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("load before store: got %v, want ErrNoSecret", err)
	}
	if err := k.Store("token", []byte("s3cret")); err != nil {
		t.Fatal(err)
	}
	got, err := k.Load("token")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "s3cret" {
		t.Fatalf("load: got %q", got)
	}
	if err := k.Delete("token"); err != nil {
		t.Fatal(err)
	}
	if err := k.Delete("token"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
	if _, err := k.Load("token"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("load after delete: got %v", err)
	}
	if err := k.Store("../escape", []byte("x")); err == nil {
		t.Fatal("path traversal name accepted")
	}
}
