package core

// BFT DAG consensus runner (C5a, spec §4.5): Narwhal-style reliable
// broadcast building a certificate DAG, scribes exchanging drafts and acks
// across rounds under a 2f+1 quorum threshold. Grounded on the teacher's
// Monte-Carlo BFT safety harness (core/bft_simulation.go) for the
// round/quorum bookkeeping idiom, generalized from "simulate message
// delivery" to "drive an actual draft/ack/cert state machine".

import (
	"fmt"
	"sort"
	"sync"
)

// ScribeID identifies one consensus participant by its peer ID.
type ScribeID string

// Round is a monotonically increasing DAG round number.
type Round uint64

// Draft is a scribe's proposed DAG vertex for a round: a batch reference
// plus the certificates of its parents from the previous round.
type Draft struct {
	Scribe  ScribeID
	Round   Round
	Parents []Hash // certificate hashes from round-1
	Payload Hash   // content hash of the batch this vertex carries
}

// Hash returns the content-addressed identity of the draft.
func (d Draft) Hash() (Hash, error) { return HashJSON(d) }

// Ack is one scribe's signature over a specific draft, the reliable-
// broadcast acknowledgment Narwhal calls a "vote".
type Ack struct {
	Scribe    ScribeID
	Draft     Hash
	Signature []byte
}

// Certificate is a draft plus 2f+1 acks: a confirmed DAG vertex.
type Certificate struct {
	Draft Draft
	Acks  []Ack
}

// Hash returns the content-addressed identity of the certificate.
func (c Certificate) Hash() (Hash, error) { return HashJSON(c) }

// quorumSize returns 2f+1 for n = 3f+1 total scribes, the standard BFT
// quorum threshold (spec §4.5 "MUST require 2f+1 acknowledging scribes").
func quorumSize(n int) int {
	f := (n - 1) / 3
	return 2*f + 1
}

// DAG accumulates certificates round by round and exposes the reliable-
// broadcast draft/ack/cert lifecycle.
type DAG struct {
	mu          sync.RWMutex
	scribes     []ScribeID
	byRound     map[Round]map[Hash]*Certificate
	pendingAcks map[Hash][]Ack // draft hash -> acks collected so far
	drafts      map[Hash]Draft
	equivocation map[ScribeID][]Draft // same-round, different-payload drafts from one scribe
}

// NewDAG constructs an empty DAG over the given scribe set.
func NewDAG(scribes []ScribeID) *DAG {
	sorted := append([]ScribeID(nil), scribes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &DAG{
		scribes:      sorted,
		byRound:      make(map[Round]map[Hash]*Certificate),
		pendingAcks:  make(map[Hash][]Ack),
		drafts:       make(map[Hash]Draft),
		equivocation: make(map[ScribeID][]Draft),
	}
}

// QuorumSize returns the ack quorum threshold for this DAG's scribe set.
func (d *DAG) QuorumSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return quorumSize(len(d.scribes))
}

// SubmitDraft records a scribe's round vertex proposal, validating that it
// cites at least a quorum of round-1 certificates (spec §4.5 "MUST cite
// 2f+1 parents", except for round 1 which has no parents).
func (d *DAG) SubmitDraft(draft Draft) (Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if draft.Round > 1 {
		if len(draft.Parents) < quorumSize(len(d.scribes)) {
			return Hash{}, &ConsensusError{Kind: ConsensusInsufficientParents, Scribe: string(draft.Scribe),
				Message: fmt.Sprintf("draft cites %d parents, need %d", len(draft.Parents), quorumSize(len(d.scribes)))}
		}
		// Parents are certificate hashes; byRound is keyed by draft hash.
		known := make(map[Hash]bool, len(d.byRound[draft.Round-1]))
		for _, c := range d.byRound[draft.Round-1] {
			if ch, err := c.Hash(); err == nil {
				known[ch] = true
			}
		}
		for _, p := range draft.Parents {
			if !known[p] {
				return Hash{}, &ConsensusError{Kind: ConsensusInsufficientParents, Scribe: string(draft.Scribe),
					Message: "cited parent certificate not found in previous round"}
			}
		}
	}

	h, err := draft.Hash()
	if err != nil {
		return Hash{}, Wrap(err, "hash draft")
	}

	for existingHash, existing := range d.drafts {
		if existing.Scribe == draft.Scribe && existing.Round == draft.Round && existingHash != h {
			d.equivocation[draft.Scribe] = append(d.equivocation[draft.Scribe], draft)
			return Hash{}, &ConsensusError{Kind: ConsensusEquivocation, Scribe: string(draft.Scribe),
				Message: "scribe already drafted a different vertex this round"}
		}
	}

	d.drafts[h] = draft
	return h, nil
}

// SubmitAck records an ack for a known draft, promoting the draft to a
// certificate once 2f+1 distinct scribes have acknowledged it.
func (d *DAG) SubmitAck(ack Ack) (*Certificate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	draft, ok := d.drafts[ack.Draft]
	if !ok {
		return nil, &ConsensusError{Kind: ConsensusQuorumNotReached, Scribe: string(ack.Scribe), Message: "ack references unknown draft"}
	}

	for _, existing := range d.pendingAcks[ack.Draft] {
		if existing.Scribe == ack.Scribe {
			return nil, nil // duplicate ack, idempotent no-op
		}
	}
	d.pendingAcks[ack.Draft] = append(d.pendingAcks[ack.Draft], ack)

	need := quorumSize(len(d.scribes))
	if len(d.pendingAcks[ack.Draft]) < need {
		return nil, nil
	}

	cert := &Certificate{Draft: draft, Acks: append([]Ack(nil), d.pendingAcks[ack.Draft]...)}
	if d.byRound[draft.Round] == nil {
		d.byRound[draft.Round] = make(map[Hash]*Certificate)
	}
	d.byRound[draft.Round][ack.Draft] = cert
	return cert, nil
}

// CertificatesAt returns every certified vertex at round r, sorted by hash
// for deterministic downstream ordering.
func (d *DAG) CertificatesAt(r Round) []*Certificate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	certs := d.byRound[r]
	out := make([]*Certificate, 0, len(certs))
	for _, c := range certs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		hi, _ := out[i].Hash()
		hj, _ := out[j].Hash()
		return string(hi.Bytes()) < string(hj.Bytes())
	})
	return out
}

// HasRoundQuorum reports whether round r has accumulated at least 2f+1
// certificates, the condition for advancing the DAG to round r+1.
func (d *DAG) HasRoundQuorum(r Round) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byRound[r]) >= quorumSize(len(d.scribes))
}

// Equivocations returns, per scribe, the conflicting drafts it was caught
// submitting for a round it had already drafted, across all rounds —
// evidence for slashing/exclusion.
func (d *DAG) Equivocations() map[ScribeID][]Draft {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[ScribeID][]Draft, len(d.equivocation))
	for k, v := range d.equivocation {
		out[k] = append([]Draft(nil), v...)
	}
	return out
}
