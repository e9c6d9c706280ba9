package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeypairPeerIDRoundTrip(t *testing.T) {
	kp, mnemonic, err := NewKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mnemonic == "" {
		t.Fatal("expected a non-empty mnemonic backup phrase")
	}
	peerID, err := kp.PeerID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub, err := peerID.PublicKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(pub) != string(kp.Public) {
		t.Fatal("public key recovered from peer id does not match original")
	}
}

func TestKeypairFromMnemonicIsDeterministic(t *testing.T) {
	kp1, mnemonic, err := NewKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kp2, err := KeypairFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(kp1.Public) != string(kp2.Public) {
		t.Fatal("reconstructing a keypair from its mnemonic should recover the same public key")
	}
}

func TestKeypairFromMnemonicRejectsBadChecksum(t *testing.T) {
	_, err := KeypairFromMnemonic("not a valid bip39 mnemonic phrase at all here", "")
	if err == nil {
		t.Fatal("expected invalid mnemonic to be rejected")
	}
}

func TestSignAndVerifySignature(t *testing.T) {
	kp, _, _ := NewKeypair()
	msg := []byte("hello modality")
	sig := kp.Sign(msg)
	if !VerifySignature(kp.Public, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifySignature(kp.Public, []byte("tampered"), sig) {
		t.Fatal("expected signature over different message to fail")
	}
}

func TestPassfileRoundTrip(t *testing.T) {
	kp, _, err := NewKeypair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "node.passfile")
	if err := SavePassfile(path, kp, "correct horse battery staple"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadPassfile(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(loaded.Public) != string(kp.Public) {
		t.Fatal("loaded keypair public key does not match saved keypair")
	}

	if _, err := LoadPassfile(path, "wrong passphrase"); err == nil {
		t.Fatal("expected wrong passphrase to fail decryption")
	}
}

func TestPassfileMissingFile(t *testing.T) {
	if _, err := LoadPassfile(filepath.Join(os.TempDir(), "does-not-exist.passfile"), "x"); err == nil {
		t.Fatal("expected missing passfile to error")
	}
}
