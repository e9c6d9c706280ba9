package core

// Chain observer / fork choice (C5b, spec §4.6): selects the canonical
// chain by cumulative difficulty, with first-seen tie-breaking, forced
// checkpoints, multi-block reorganization, and orphan tracking. Grounded on
// the teacher's ChainForkManager (core/chain_fork_manager.go:
// AddForkBlock/ListForks/ResolveForks), generalized from "track forks for
// inspection" to "actually select and maintain the canonical chain".

import (
	"fmt"
	"sort"
	"sync"
)

// chainEntry is one accepted block plus its precomputed cumulative work and
// first-seen sequence number (for deterministic tie-breaking).
type chainEntry struct {
	block      Block
	cumWork    uint64
	firstSeen  uint64
}

// ForkChoice tracks every accepted block (canonical and orphaned) and
// selects the canonical tip by cumulative difficulty.
type ForkChoice struct {
	mu sync.RWMutex

	byHash   map[Hash]*chainEntry
	children map[Hash][]Hash // parent hash -> child hashes, including orphan branches
	canonical []Hash          // canonical chain, genesis-first
	tip       Hash

	checkpoints map[uint64]Hash // height -> forced block hash
	seenCounter uint64
}

// NewForkChoice constructs a fork choice engine rooted at genesis.
func NewForkChoice(genesis Block) (*ForkChoice, error) {
	h, err := genesis.Hash()
	if err != nil {
		return nil, err
	}
	fc := &ForkChoice{
		byHash:      make(map[Hash]*chainEntry),
		children:    make(map[Hash][]Hash),
		checkpoints: make(map[uint64]Hash),
	}
	fc.byHash[h] = &chainEntry{block: genesis, cumWork: genesis.Header.Difficulty, firstSeen: 0}
	fc.canonical = []Hash{h}
	fc.tip = h
	fc.seenCounter = 1
	return fc, nil
}

// AddCheckpoint forces height to canonically resolve to blockHash,
// overriding cumulative-difficulty selection at that height (spec §4.6
// "MUST honor forced checkpoints").
func (fc *ForkChoice) AddCheckpoint(height uint64, blockHash Hash) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.checkpoints[height] = blockHash
}

// Head returns the current canonical tip block hash.
func (fc *ForkChoice) Head() Hash {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.tip
}

// CumulativeDifficulty returns the accepted cumulative work for blockHash.
func (fc *ForkChoice) CumulativeDifficulty(blockHash Hash) (uint64, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	e, ok := fc.byHash[blockHash]
	if !ok {
		return 0, false
	}
	return e.cumWork, true
}

// GetCanonical returns the canonical block at height, if any.
func (fc *ForkChoice) GetCanonical(height uint64) (Block, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if height >= uint64(len(fc.canonical)) {
		return Block{}, false
	}
	h := fc.canonical[height]
	return fc.byHash[h].block, true
}

// AddBlock evaluates a new candidate block against the acceptance rules, in
// order (spec §4.6):
//  1. duplicate rejection — an already-known block hash returns a
//     ForkChoiceDuplicate error
//  2. parent must exist (else ForkChoiceMissingParent)
//  3. forced checkpoint — if height has a checkpoint, only the checkpointed
//     hash may become canonical at that height
//  4. extension of the current tip — accepted as the new tip
//  5. competing block at an already-canonical height — first-seen wins
//     regardless of difficulty; the block is kept as an orphan
//  6. block past the canonical tip's height on another branch — a
//     multi-block reorg if its cumulative work exceeds the tip's
//
// Returns whether the canonical tip changed, and the list of block hashes
// reorganized out of the canonical chain (empty unless a reorg occurred).
func (fc *ForkChoice) AddBlock(b Block) (tipChanged bool, reorgedOut []Hash, err error) {
	h, err := b.Hash()
	if err != nil {
		return false, nil, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, dup := fc.byHash[h]; dup {
		return false, nil, &ForkChoiceError{Kind: ForkChoiceDuplicate, Message: "block already known"}
	}

	parent, ok := fc.byHash[b.Header.Parent]
	if !ok {
		return false, nil, &ForkChoiceError{Kind: ForkChoiceMissingParent, Message: fmt.Sprintf("parent %x not known", b.Header.Parent.Bytes())}
	}
	if parent.block.Header.Height+1 != b.Header.Height {
		return false, nil, &ForkChoiceError{Kind: ForkChoiceWrongParent, Message: "height does not follow parent"}
	}

	entry := &chainEntry{block: b, cumWork: parent.cumWork + b.Header.Difficulty, firstSeen: fc.seenCounter}
	fc.seenCounter++
	fc.byHash[h] = entry
	fc.children[b.Header.Parent] = append(fc.children[b.Header.Parent], h)

	if checkpoint, ok := fc.checkpoints[b.Header.Height]; ok {
		if checkpoint != h {
			return false, nil, nil // recorded as orphan; checkpoint at this height already fixed to a different hash
		}
	}

	if len(fc.canonical) == 0 || b.Header.Parent == fc.tip {
		return fc.extendCanonical(h, entry)
	}

	return fc.maybeReorg(h, entry)
}

func (fc *ForkChoice) extendCanonical(h Hash, entry *chainEntry) (bool, []Hash, error) {
	if checkpoint, ok := fc.checkpoints[entry.block.Header.Height]; ok && checkpoint != h {
		return false, nil, nil
	}
	fc.canonical = append(fc.canonical, h)
	fc.tip = h
	return true, nil, nil
}

// maybeReorg handles a block that does not extend the current tip: it may
// compete with an already-canonical block at the same height, or extend an
// orphan branch that now surpasses the canonical chain's cumulative work.
//
// These are two distinct mechanisms (spec §4.6). A lone block competing
// directly against an already-decided height is a single-block fork: it is
// rejected outright by first-seen, even if its own difficulty is higher
// (worked scenario (b)) — cumulative-difficulty comparison is never applied
// one block at a time against a settled height. The cumulative-difficulty
// override belongs only to a multi-block reorganization: an orphan branch
// that, once its own blocks extend it past the canonical tip's height,
// legitimately out-works the canonical chain as a whole.
func (fc *ForkChoice) maybeReorg(h Hash, entry *chainEntry) (bool, []Hash, error) {
	height := entry.block.Header.Height
	tipEntry := fc.byHash[fc.tip]

	if checkpoint, ok := fc.checkpoints[height]; ok && checkpoint != h {
		return false, nil, nil // a forced checkpoint already fixes this height to another block
	}

	if height < uint64(len(fc.canonical)) {
		return false, nil, nil // single-block fork at a settled height: first-seen wins unconditionally
	}

	if entry.cumWork > tipEntry.cumWork {
		return fc.reorgTo(h)
	}
	return false, nil, nil
}

// reorgTo rebuilds the canonical chain to end at newTip, walking back to
// the common ancestor and replacing every block after it.
func (fc *ForkChoice) reorgTo(newTip Hash) (bool, []Hash, error) {
	var newChain []Hash
	cur := newTip
	for {
		newChain = append([]Hash{cur}, newChain...)
		entry := fc.byHash[cur]
		if entry.block.Header.Height == 0 {
			break
		}
		cur = entry.block.Header.Parent
	}

	commonLen := 0
	for commonLen < len(newChain) && commonLen < len(fc.canonical) && newChain[commonLen] == fc.canonical[commonLen] {
		commonLen++
	}

	reorgedOut := append([]Hash(nil), fc.canonical[commonLen:]...)
	fc.canonical = newChain
	fc.tip = newTip
	return true, reorgedOut, nil
}

// FindOrphansAt returns every known block at height that is not part of the
// canonical chain.
func (fc *ForkChoice) FindOrphansAt(height uint64) []Block {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	var canonHash Hash
	if height < uint64(len(fc.canonical)) {
		canonHash = fc.canonical[height]
	}
	var out []Block
	for h, e := range fc.byHash {
		if e.block.Header.Height == height && h != canonHash {
			out = append(out, e.block)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		hi, _ := out[i].Hash()
		hj, _ := out[j].Hash()
		return string(hi.Bytes()) < string(hj.Bytes())
	})
	return out
}

// AllOrphans returns every known block not on the canonical chain.
func (fc *ForkChoice) AllOrphans() []Block {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	canonSet := make(map[Hash]bool, len(fc.canonical))
	for _, h := range fc.canonical {
		canonSet[h] = true
	}
	var out []Block
	for h, e := range fc.byHash {
		if !canonSet[h] {
			out = append(out, e.block)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		hi, _ := out[i].Hash()
		hj, _ := out[j].Hash()
		return string(hi.Bytes()) < string(hj.Bytes())
	})
	return out
}
