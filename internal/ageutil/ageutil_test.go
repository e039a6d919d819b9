package ageutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
)

func TestEncryptDecryptPassphrase(t *testing.T) {
	content := []byte("export ZSH=\"$HOME/.oh-my-zsh\"\nplugins=(git)\n")
	key := &Key{Passphrase: "test-password-123"}

	encData, err := key.Encrypt(content)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(encData, content) {
		t.Error("encrypted data should differ from plaintext")
	}
	encrypted := filepath.Join(t.TempDir(), ".zshrc.bak"+Ext)
	if err := os.WriteFile(encrypted, encData, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := key.DecryptFile(encrypted)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("decrypted = %q, want %q", got, content)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	ct, err := (&Key{Passphrase: "right"}).Encrypt([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (&Key{Passphrase: "wrong"}).Decrypt(ct); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestDecryptMissingFile(t *testing.T) {
	key := &Key{Passphrase: "test"}
	if _, err := key.DecryptFile("/nonexistent/file.age"); err == nil {
		t.Error("expected error for missing file")
	}
}


func TestEncryptDecryptIdentityFile(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	idPath := filepath.Join(t.TempDir(), "key.txt")
	if err := os.WriteFile(idPath, []byte(id.String()+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	key := &Key{IdentityFile: idPath}
	ct, err := key.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := key.Decrypt(ct)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "hello" {
		t.Errorf("decrypted = %q", pt)
	}
}

func TestNoIdentityConfigured(t *testing.T) {
	if _, err := (&Key{}).Encrypt([]byte("x")); err == nil {
		t.Error("expected error without passphrase or identity")
	}
}

func TestConfigured(t *testing.T) {
	var nilKey *Key
	tests := []struct {
		name string
		key  *Key
		want bool
	}{
		{"nil", nilKey, false},
		{"empty", &Key{}, false},
		{"passphrase", &Key{Passphrase: "p"}, true},
		{"identity", &Key{IdentityFile: "/k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncrypted(t *testing.T) {
	if !Encrypted(".zshrc.autozsh.20240101120000.bak.age") {
		t.Error("expected .age name to be encrypted")
	}
	if Encrypted(".zshrc.autozsh.20240101120000.bak") {
		t.Error("plain backup reported as encrypted")
	}
}
