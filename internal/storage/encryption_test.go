package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testKDF keeps key derivation fast in tests.
var testKDF = KDFParams{Time: 1, Memory: 1024, Threads: 1}

func TestSealUnsealData(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"simple text", "Hello, World!", "test-password"},
		{"empty", "", "test-password"},
		{"long", string(make([]byte, 10000)), "secure-password-123"},
		{"unicode", "nike.com 中文 émojis", "pássword-with-spëcial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := seal([]byte(tt.plaintext), tt.password, testKDF)
			if err != nil {
				t.Fatalf("seal failed: %v", err)
			}

			plaintext, err := unseal(sealed, tt.password, testKDF)
			if err != nil {
				t.Fatalf("unseal failed: %v", err)
			}
			if string(plaintext) != tt.plaintext {
				t.Errorf("round trip changed the data")
			}

			if _, err := unseal(sealed, tt.password+"x", testKDF); !errors.Is(err, ErrWrongPassword) {
				t.Errorf("expected ErrWrongPassword, got %v", err)
			}
		})
	}
}

func TestSeal_UsesFreshSalt(t *testing.T) {
	a, err := seal([]byte("same"), "pw", testKDF)
	if err != nil {
		t.Fatal(err)
	}
	b, err := seal([]byte("same"), "pw", testKDF)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) == string(b) {
		t.Error("expected different ciphertexts for the same input")
	}
}

func TestUnseal_TooShort(t *testing.T) {
	if _, err := unseal([]byte("short"), "pw", testKDF); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestSealBackup_RoundTrip(t *testing.T) {
	svc := NewTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateRun(ctx, sampleRun()); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}

	dir := t.TempDir()
	path, err := svc.Backup(ctx, dir, "snapshot")
	if err != nil {
		t.Fatalf("Failed to create backup: %v", err)
	}

	sealedPath, err := SealBackup(path, "hunter2", testKDF)
	if err != nil {
		t.Fatalf("SealBackup failed: %v", err)
	}
	if sealedPath != path+SealedExt {
		t.Errorf("unexpected sealed path %s", sealedPath)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("plaintext backup should be removed")
	}

	sealed, err := IsSealed(sealedPath)
	if err != nil || !sealed {
		t.Errorf("expected sealed file, got %v (%v)", sealed, err)
	}

	if _, err := UnsealBackup(sealedPath, "", "wrong", testKDF); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}

	restored, err := UnsealBackup(sealedPath, "", "hunter2", testKDF)
	if err != nil {
		t.Fatalf("UnsealBackup failed: %v", err)
	}
	if restored != path {
		t.Errorf("expected restore to %s, got %s", path, restored)
	}
	if err := VerifyBackup(ctx, restored); err != nil {
		t.Errorf("restored backup does not verify: %v", err)
	}

	if _, err := UnsealBackup(sealedPath, "", "hunter2", testKDF); err == nil {
		t.Error("expected error when the destination exists")
	}
}

func TestSealBackup_RequiresPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := SealBackup(path, "", testKDF); err == nil {
		t.Error("expected error without password")
	}
}

func TestIsSealed_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.db")
	if err := os.WriteFile(path, []byte("SQLite format 3"), 0o600); err != nil {
		t.Fatal(err)
	}
	sealed, err := IsSealed(path)
	if err != nil {
		t.Fatal(err)
	}
	if sealed {
		t.Error("plain file reported as sealed")
	}

	if _, err := UnsealBackup(path, "", "pw", testKDF); err == nil {
		t.Error("expected error unsealing a plain file")
	}
}
