package core

// Append-only commit log entries (C4, spec §3, §4.4). Grounded on the
// teacher's Log/Receipt pair (core/virtual_machine.go) generalized from
// "one EVM call produced these logs" to "one signed commit carries these
// body actions", and on core/security.go's Ed25519 sign/verify helpers.

import (
	"crypto/ed25519"
	"fmt"
	"sort"
)

// ActionKind enumerates the four body-action kinds a commit may carry.
type ActionKind string

const (
	ActionPost   ActionKind = "post"
	ActionRule   ActionKind = "rule"
	ActionAction ActionKind = "action"
	ActionDelete ActionKind = "delete"
)

// Action is one effect a commit applies to the path store or rule set.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Path  string     `json:"path,omitempty"`  // POST / ACTION / DELETE target
	Value TypedValue `json:"value,omitempty"` // POST / ACTION payload

	// ModuleCode carries the raw predicate bytecode alongside a POST/ACTION
	// whose Value is a LeafWASM leaf. It is hashed and stored in the
	// contract's content-addressed module store rather than the path store
	// itself (the path store only ever holds TypedValue.WASM, the hash).
	ModuleCode []byte `json:"module_code,omitempty"`

	// RULE fields: a named formula accumulated into the contract's rule set.
	RuleID      string `json:"rule_id,omitempty"`
	RuleFormula string `json:"rule_formula,omitempty"` // source text, parsed when the commit is applied
	RuleModel   string `json:"rule_model,omitempty"`   // which declared model the rule is checked against
}

// Commit is one append-only, signed entry in a contract's log. It encodes
// to JSON as {parent, actions, signatures}: the body actions sit under the
// key "actions" (each action names its kind under "kind"), and the commit
// hash is not carried as a field but computed by Hash(). There is no
// timestamp field here — ordering and wall-clock time are properties of the
// enclosing block (BlockHeader.Timestamp, pow_block.go), not of the commit
// itself, so the same commit hashes identically regardless of which block
// or bindings sequence it.
type Commit struct {
	Parent     Hash              `json:"parent"`
	Actions    []Action          `json:"actions"`
	Signatures map[string][]byte `json:"signatures"` // peer id (base58 PeerID string) -> signature
}

// Hash returns the commit's content-addressed identity: the canonical-JSON
// SHA-256 of its parent and actions (the "body"). Signatures are excluded
// from the hash so a commit's identity is fixed before every signer has
// countersigned it.
func (c *Commit) Hash() (Hash, error) {
	unsigned := struct {
		Parent  Hash     `json:"parent"`
		Actions []Action `json:"actions"`
	}{c.Parent, c.Actions}
	return HashJSON(unsigned)
}

// Sign adds signer's signature over the commit hash.
func (c *Commit) Sign(signerID PeerID, k *Keypair) error {
	h, err := c.Hash()
	if err != nil {
		return err
	}
	if c.Signatures == nil {
		c.Signatures = make(map[string][]byte)
	}
	c.Signatures[string(signerID)] = k.Sign(h.Bytes())
	return nil
}

// VerifySignatures checks every signature in the commit against the commit
// hash, resolving each signer's public key from its peer ID. A commit with
// zero signatures is rejected: every commit must be signed by at least one
// party (spec §4.4 "MUST verify every signature").
func (c *Commit) VerifySignatures() error {
	if len(c.Signatures) == 0 {
		return &SignatureError{Message: "commit has no signatures"}
	}
	h, err := c.Hash()
	if err != nil {
		return err
	}
	signers := make([]string, 0, len(c.Signatures))
	for s := range c.Signatures {
		signers = append(signers, s)
	}
	sort.Strings(signers)
	for _, signer := range signers {
		pub, err := PeerID(signer).PublicKey()
		if err != nil {
			return &SignatureError{Signer: signer, Message: fmt.Sprintf("bad peer id: %v", err)}
		}
		if !ed25519.Verify(pub, h.Bytes(), c.Signatures[signer]) {
			return &SignatureError{Signer: signer, Message: "signature does not verify"}
		}
	}
	return nil
}

// Signers returns the set of peer IDs (as ed25519 public key bytes) that
// signed this commit, for use as CommitContext.Signers in predicate
// evaluation.
func (c *Commit) Signers() map[string]bool {
	out := make(map[string]bool, len(c.Signatures))
	for signer := range c.Signatures {
		if pub, err := PeerID(signer).PublicKey(); err == nil {
			out[string(pub)] = true
		}
	}
	return out
}

// WrittenPaths returns every path this commit's POST/ACTION/DELETE actions
// touch, for modifies(/prefix) evaluation.
func (c *Commit) WrittenPaths() []string {
	var out []string
	for _, a := range c.Actions {
		if a.Kind == ActionPost || a.Kind == ActionAction || a.Kind == ActionDelete {
			out = append(out, a.Path)
		}
	}
	return out
}
