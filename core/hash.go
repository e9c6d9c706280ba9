package core

// Canonical serialization and content hashing, used for commit hashes (§3),
// WASM module cache keys (§4.2), and PoW block hashing (§3). Grounded on the
// teacher's CompileWASM hash computation (core/contracts.go) and its
// Merkle-tree double-SHA256 habits (core/merkle_tree_operations.go), but
// expressed here as canonical-JSON SHA-256 per the wire format in spec §6.

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Hash is a 32-byte SHA-256 digest rendered as hex on the wire.
type Hash [32]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(hex.EncodeToString(h[:])) }

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(h) {
		return fmt.Errorf("hash: expected %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return nil
}

// CanonicalJSON serializes v with sorted object keys and no extraneous
// whitespace, so that semantically identical values always hash identically
// regardless of map iteration order or field insertion order.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

// HashJSON returns the SHA-256 digest of v's canonical JSON serialization.
func HashJSON(v interface{}) (Hash, error) {
	b, err := CanonicalJSON(v)
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(b), nil
}

// HashBytes returns the SHA-256 digest of raw bytes, used for content
// addressing compiled WASM modules by their byte image (§4.2).
func HashBytes(b []byte) Hash { return sha256.Sum256(b) }
