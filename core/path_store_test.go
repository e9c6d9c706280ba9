package core

import "testing"

func TestPathStoreSetRejectsTypeMismatch(t *testing.T) {
	s := NewPathStore()
	err := s.Set("/balances/buyer.balance", TypedValue{Type: LeafText, Text: "oops"})
	if err == nil {
		t.Fatal("expected leaf-type mismatch to be rejected")
	}
}

func TestPathStoreSetAndGet(t *testing.T) {
	s := NewPathStore()
	if err := s.Set("/balances/buyer.balance", TypedValue{Type: LeafBalance, Bal: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := s.Get("/balances/buyer.balance")
	if !ok || v.Bal != 100 {
		t.Fatalf("expected balance 100, got %+v (ok=%v)", v, ok)
	}
}

func TestPathStoreCloneIsIndependent(t *testing.T) {
	s := NewPathStore()
	_ = s.Set("/a.text", TypedValue{Type: LeafText, Text: "one"})
	clone := s.Clone()
	_ = clone.Set("/a.text", TypedValue{Type: LeafText, Text: "two"})

	orig, _ := s.Get("/a.text")
	cloned, _ := clone.Get("/a.text")
	if orig.Text != "one" || cloned.Text != "two" {
		t.Fatalf("clone mutation leaked into original: orig=%q cloned=%q", orig.Text, cloned.Text)
	}
}

func TestAncestorsAndModifiedUnder(t *testing.T) {
	ancestors := Ancestors("/parties/buyer/wallet.id")
	want := []string{"parties", "parties/buyer", "parties/buyer/wallet.id"}
	if len(ancestors) != len(want) {
		t.Fatalf("expected %d ancestors, got %d: %v", len(want), len(ancestors), ancestors)
	}
	for i, w := range want {
		if ancestors[i] != w {
			t.Fatalf("ancestor[%d] = %q, want %q", i, ancestors[i], w)
		}
	}
	if !ModifiedUnder("/parties/buyer/wallet.id", "/parties") {
		t.Fatal("expected write under /parties/buyer/wallet.id to count as modifying /parties")
	}
	if ModifiedUnder("/parties/buyer/wallet.id", "/other") {
		t.Fatal("unrelated prefix should not count as modified")
	}
}

func TestPathStoreListDir(t *testing.T) {
	s := NewPathStore()
	_ = s.Set("/parties/buyer.id", TypedValue{Type: LeafPublicKey, PK: []byte("k1")})
	_ = s.Set("/parties/seller.id", TypedValue{Type: LeafPublicKey, PK: []byte("k2")})
	_ = s.Set("/other.text", TypedValue{Type: LeafText, Text: "x"})

	listed := s.ListDir("/parties")
	if len(listed) != 2 {
		t.Fatalf("expected 2 paths under /parties, got %v", listed)
	}
}

func TestLeafTypeFromPathUnknownExtension(t *testing.T) {
	if _, err := LeafTypeFromPath("/a.unknown"); err == nil {
		t.Fatal("expected unknown extension to fail")
	}
	if _, err := LeafTypeFromPath("/noext"); err == nil {
		t.Fatal("expected path without extension to fail")
	}
}
