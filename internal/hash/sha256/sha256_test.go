// Package sha256 includes tests for the keyed SHA-256 hasher.
package sha256

import "testing"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New("key")
	got := h.Hash([]byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if again := h.Hash([]byte("The quick brown fox jumps over the lazy dog")); again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}
}

// TestHasherPepperChangesDigest ensures the pepper keys the digest.
func TestHasherPepperChangesDigest(t *testing.T) {
	t.Parallel()

	plain := New("").Hash([]byte("secret"))
	peppered := New("pepper").Hash([]byte("secret"))
	if plain == peppered {
		t.Fatal("expected pepper to change the digest")
	}
	if concat := New("").Hash([]byte("peppersecret")); peppered == concat {
		t.Fatal("expected keyed digest to differ from a prefixed one")
	}
}

// TestHasherMatches covers positive and negative comparisons.
func TestHasherMatches(t *testing.T) {
	t.Parallel()

	h := New("pepper")
	digest := h.Hash([]byte("secret"))
	if !h.Matches(digest, []byte("secret")) {
		t.Fatal("expected digest to match")
	}
	if h.Matches(digest, []byte("Secret")) {
		t.Fatal("expected different secret not to match")
	}
	if h.Matches("", []byte("secret")) {
		t.Fatal("expected empty digest not to match")
	}
	if New("other").Matches(digest, []byte("secret")) {
		t.Fatal("expected different pepper not to match")
	}
}
