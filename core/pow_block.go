package core

// PoW block/header types and epoch-seeded validator nomination (C5b, spec
// §3, §4.6). Grounded directly on the teacher's ChainForkManager/ForkInfo
// (core/chain_fork_manager.go), generalized from its single-chain fork
// bookkeeping to the full cumulative-difficulty fork-choice engine in
// fork_choice.go.

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// BlockData is a PoW block's data payload (spec §3 "PoW block" payload
// {nominated_peer_id, miner_number}): which validator this block nominates
// for duty and the miner's self-reported attempt number.
type BlockData struct {
	NominatedPeerID string `json:"nominated_peer_id"`
	MinerNumber     uint64 `json:"miner_number"`
}

// Hash returns the content-addressed identity of the payload, stored in the
// owning header's DataHash field.
func (d BlockData) Hash() (Hash, error) { return HashJSON(d) }

// BlockHeader is the PoW-chain block header the fork choice engine reasons
// about. Difficulty is this block's own work target, not a running total;
// the header carries no cumulative work, which the fork choice engine
// computes by summing Difficulty along the chain.
type BlockHeader struct {
	Parent     Hash
	Height     uint64 // "index"
	Epoch      Epoch
	Difficulty uint64
	Nonce      uint64
	Timestamp  int64
	DataHash   Hash // hash of the block's BlockData payload
}

// Hash returns the block's content-addressed identity.
func (h BlockHeader) Hash() (Hash, error) { return HashJSON(h) }

// Block pairs a header with its data payload.
type Block struct {
	Header BlockHeader
	Data   BlockData
}

// Hash returns the block's identity, which is its header's hash — the data
// payload is referenced by DataHash, not included. Nothing here checks that
// Header.DataHash matches Data, so two blocks with identical headers but
// different payloads share one hash.
func (b Block) Hash() (Hash, error) { return b.Header.Hash() }

// Epoch groups a fixed span of heights under one validator nomination.
type Epoch uint64

// EpochOf returns the epoch a given height belongs to.
func EpochOf(height uint64, epochLength uint64) Epoch {
	return Epoch(height / epochLength)
}

// EpochNonces collects the nonce of every block mined within one epoch, in
// height order — the raw material epoch N's nomination seed is XORed from
// once epoch N-2 has fully elapsed (spec §3).
type EpochNonces []uint64

// XORSeed XORs every recorded nonce together into a single shuffle seed.
// XOR rather than sum/concat is what the spec names explicitly, and it has
// the useful property that it is insensitive to the order blocks within the
// epoch are folded in.
func (n EpochNonces) XORSeed() uint64 {
	var seed uint64
	for _, nonce := range n {
		seed ^= nonce
	}
	return seed
}

// NominateValidators derives one epoch's validator order from the prior
// epoch's order via a Fisher-Yates shuffle seeded deterministically from
// priorNonces (spec §3: "the validator set for epoch N is derived from
// epoch N−2 nominations ... seeded by XOR of epoch-N−2 nonces"), so every
// honest node derives the identical order without communication — the same
// "deterministic epoch seed" idiom the teacher uses for its fork-resolution
// tie-breaking, applied here to validator scheduling instead.
func NominateValidators(priorOrder []string, priorNonces EpochNonces) []string {
	out := append([]string(nil), priorOrder...)
	seed := priorNonces.XORSeed()
	for i := len(out) - 1; i > 0; i-- {
		seed = nextSeed(seed)
		j := int(seed % uint64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func nextSeed(seed uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	digest := sha256.Sum256(buf[:])
	return binary.BigEndian.Uint64(digest[:8])
}

// ValidatorSchedule maintains the per-epoch validator nomination history
// (spec §3): epoch N's order is derived from epoch N-2's order shuffled by
// the XOR of every nonce mined during epoch N-2. Epochs 0 and 1 have no
// N-2 predecessor and use the genesis order supplied at construction.
// RecordNonce must be called for every mined block as the chain advances so
// the N-2 lookback has real data once epoch N arrives.
type ValidatorSchedule struct {
	mu          sync.Mutex
	epochLength uint64
	genesis     []string
	nonces      map[Epoch]EpochNonces
	orders      map[Epoch][]string
}

// NewValidatorSchedule constructs a schedule seeded with the genesis
// validator order used for epochs 0 and 1.
func NewValidatorSchedule(epochLength uint64, genesisOrder []string) *ValidatorSchedule {
	return &ValidatorSchedule{
		epochLength: epochLength,
		genesis:     append([]string(nil), genesisOrder...),
		nonces:      make(map[Epoch]EpochNonces),
		orders:      make(map[Epoch][]string),
	}
}

// RecordNonce registers the nonce of a block mined at height, bucketing it
// into its epoch's nonce list for a later N-2 lookback.
func (s *ValidatorSchedule) RecordNonce(height uint64, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	epoch := EpochOf(height, s.epochLength)
	s.nonces[epoch] = append(s.nonces[epoch], nonce)
}

// OrderForEpoch returns epoch's validator nomination order, deriving and
// memoizing it from epoch-2's order and recorded nonces if not already
// known. Returns an error if epoch-2's nonces have not yet been recorded
// (the chain has not advanced far enough for this epoch to be nominated).
func (s *ValidatorSchedule) OrderForEpoch(epoch Epoch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderForEpochLocked(epoch)
}

func (s *ValidatorSchedule) orderForEpochLocked(epoch Epoch) ([]string, error) {
	if epoch < 2 {
		return append([]string(nil), s.genesis...), nil
	}
	if order, ok := s.orders[epoch]; ok {
		return order, nil
	}
	priorEpoch := epoch - 2
	priorOrder, err := s.orderForEpochLocked(priorEpoch)
	if err != nil {
		return nil, err
	}
	priorNonces, ok := s.nonces[priorEpoch]
	if !ok || len(priorNonces) == 0 {
		return nil, fmt.Errorf("epoch %d nonces not yet recorded; cannot derive epoch %d's nomination", priorEpoch, epoch)
	}
	order := NominateValidators(priorOrder, priorNonces)
	s.orders[epoch] = order
	return order, nil
}

// ValidatorForHeight returns the nominated validator for height, indexing
// into that height's epoch nomination order.
func (s *ValidatorSchedule) ValidatorForHeight(height uint64) (string, error) {
	order, err := s.OrderForEpoch(EpochOf(height, s.epochLength))
	if err != nil {
		return "", err
	}
	if len(order) == 0 {
		return "", fmt.Errorf("empty validator set")
	}
	idx := height % uint64(len(order))
	return order[idx], nil
}
