package core

// Shoal-style wave/leader total ordering over the certificate DAG (C5a,
// spec §4.5). Every odd round anchors a "wave"; the wave's leader
// certificate is committed if a quorum of the certificates in the following
// round cite it directly as a parent, else the wave is skipped. Citations
// reached transitively through later rounds are not counted. Grounded on the teacher's reputation-weighted
// validator selection pattern (core/chain_fork_manager.go's deterministic
// epoch seeding), generalized from PoW validator nomination to leader
// election.

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

// LeaderElector selects the leader scribe for a wave, deterministically
// from the wave number and the scribe set so every honest node agrees
// without further communication.
type LeaderElector struct {
	scribes []ScribeID
	// reputation optionally weights selection; nil falls back to uniform
	// round-robin over the sorted scribe set.
	reputation map[ScribeID]float64
}

// NewLeaderElector constructs an elector over scribes with optional
// reputation weights.
func NewLeaderElector(scribes []ScribeID, reputation map[ScribeID]float64) *LeaderElector {
	sorted := append([]ScribeID(nil), scribes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &LeaderElector{scribes: sorted, reputation: reputation}
}

// LeaderForWave deterministically picks the wave's leader. With no
// reputation table it is a simple round-robin; with one, a lottery weighted
// by reputation whose draw is a SHA-256 digest of the wave number, not a
// ChaCha stream (teacher's epoch-seeded shuffle
// idiom from chain_fork_manager.go, adapted from "pick a validator slate"
// to "pick one leader").
func (e *LeaderElector) LeaderForWave(wave uint64) ScribeID {
	if len(e.scribes) == 0 {
		return ""
	}
	if len(e.reputation) == 0 {
		return e.scribes[wave%uint64(len(e.scribes))]
	}
	seed := waveSeed(wave)
	total := 0.0
	for _, s := range e.scribes {
		total += e.reputation[s] + 1.0 // +1 floor so zero-reputation scribes stay eligible
	}
	target := seed * total
	acc := 0.0
	for _, s := range e.scribes {
		acc += e.reputation[s] + 1.0
		if target < acc {
			return s
		}
	}
	return e.scribes[len(e.scribes)-1]
}

// waveSeed derives a deterministic pseudo-random value in [0,1] from the
// wave number via SHA-256, used as the lottery draw. Float rounding makes
// 1.0 reachable; LeaderForWave then falls back to the last scribe.
func waveSeed(wave uint64) float64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], wave)
	digest := sha256.Sum256(buf[:])
	n := binary.BigEndian.Uint64(digest[:8])
	return float64(n) / float64(^uint64(0))
}

// Orderer walks the certificate DAG wave by wave, producing the total
// commit order of certificates.
type Orderer struct {
	dag     *DAG
	elector *LeaderElector
	// committed tracks certificate hashes already emitted, so a later wave
	// that transitively cites an already-committed vertex does not re-emit it.
	committed map[Hash]bool
}

// NewOrderer constructs an orderer over dag using elector for leader
// selection.
func NewOrderer(dag *DAG, elector *LeaderElector) *Orderer {
	return &Orderer{dag: dag, elector: elector, committed: make(map[Hash]bool)}
}

// TryCommitWave attempts to commit the leader certificate of the wave
// anchored at round leaderRound (wave w anchors at round 2w+1, so wave 0
// anchors at round 1). It returns the deterministically-ordered list of newly
// committed certificates (the leader's causal history not yet emitted), or
// nil if the wave must be skipped because no quorum of the following round
// cites the leader.
func (o *Orderer) TryCommitWave(wave uint64, leaderRound Round) ([]*Certificate, error) {
	leaderID := o.elector.LeaderForWave(wave)
	leaderCerts := o.dag.CertificatesAt(leaderRound)

	var leader *Certificate
	for _, c := range leaderCerts {
		if c.Draft.Scribe == leaderID {
			leader = c
			break
		}
	}
	if leader == nil {
		return nil, nil // leader did not certify this round; wave skipped
	}

	nextRound := o.dag.CertificatesAt(leaderRound + 1)
	leaderHash, err := leader.Hash()
	if err != nil {
		return nil, Wrap(err, "hash leader certificate")
	}
	citing := 0
	for _, c := range nextRound {
		for _, p := range c.Draft.Parents {
			if p == leaderHash {
				citing++
				break
			}
		}
	}
	if citing < o.dag.QuorumSize() {
		return nil, nil // not enough of the next round cites the leader yet; retry later
	}

	return o.commitCausalHistory(leader)
}

// commitCausalHistory walks backward from cert through its parent
// certificates (breadth-first, deterministic hash order at each level),
// emitting every not-yet-committed ancestor followed by cert itself — the
// standard "commit the leader's causal history" rule.
func (o *Orderer) commitCausalHistory(cert *Certificate) ([]*Certificate, error) {
	var order []*Certificate
	visited := make(map[Hash]bool)
	var walk func(c *Certificate) error
	walk = func(c *Certificate) error {
		h, err := c.Hash()
		if err != nil {
			return err
		}
		if visited[h] || o.committed[h] {
			return nil
		}
		visited[h] = true

		parents := make([]*Certificate, 0, len(c.Draft.Parents))
		if c.Draft.Round > 0 {
			for _, p := range c.Draft.Parents {
				for _, pc := range o.dag.CertificatesAt(c.Draft.Round - 1) {
					ph, _ := pc.Hash()
					if ph == p {
						parents = append(parents, pc)
					}
				}
			}
		}
		sort.Slice(parents, func(i, j int) bool {
			hi, _ := parents[i].Hash()
			hj, _ := parents[j].Hash()
			return string(hi.Bytes()) < string(hj.Bytes())
		})
		for _, p := range parents {
			if err := walk(p); err != nil {
				return err
			}
		}
		order = append(order, c)
		o.committed[h] = true
		return nil
	}
	if err := walk(cert); err != nil {
		return nil, fmt.Errorf("commit causal history: %w", err)
	}
	return order, nil
}
