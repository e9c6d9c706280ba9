package core

import "testing"

func mustHash(t *testing.T, b Block) Hash {
	t.Helper()
	h, err := b.Hash()
	if err != nil {
		t.Fatalf("hash block: %v", err)
	}
	return h
}

func genesisBlock() Block {
	return Block{Header: BlockHeader{Height: 0, Difficulty: 1}}
}

func childOf(parent Block, difficulty uint64, nonce uint64) Block {
	parentHash, _ := parent.Hash()
	return Block{Header: BlockHeader{
		Parent:     parentHash,
		Height:     parent.Header.Height + 1,
		Difficulty: difficulty,
		Nonce:      nonce,
	}}
}

func TestForkChoiceSimpleExtension(t *testing.T) {
	genesis := genesisBlock()
	fc, err := NewForkChoice(genesis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b1 := childOf(genesis, 5, 1)
	changed, reorged, err := fc.AddBlock(b1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || len(reorged) != 0 {
		t.Fatalf("expected simple extension with no reorg, got changed=%v reorged=%v", changed, reorged)
	}
	head := fc.Head()
	want, _ := b1.Hash()
	if head != want {
		t.Fatal("expected new block to become the canonical tip")
	}
}

func TestForkChoiceSingleBlockForkHigherDifficultyLoses(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)
	weak := childOf(genesis, 5, 1)
	strong := childOf(genesis, 9, 2)

	if _, _, err := fc.AddBlock(weak); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed, reorged, err := fc.AddBlock(strong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("a lone single-block fork must never override an already-canonical block by difficulty alone")
	}
	if len(reorged) != 0 {
		t.Fatalf("expected no blocks reorged out, got %d", len(reorged))
	}
	wantHead := mustHash(t, weak)
	if fc.Head() != wantHead {
		t.Fatal("expected first-seen weak block to remain canonical despite the stronger competitor")
	}
}

func TestForkChoiceFirstSeenTiebreak(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)
	first := childOf(genesis, 5, 1)
	second := childOf(genesis, 5, 2) // same difficulty, different nonce => different hash

	fc.AddBlock(first)
	changed, _, err := fc.AddBlock(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("expected equal-difficulty competitor to lose the first-seen tiebreak")
	}
	wantHead := mustHash(t, first)
	if fc.Head() != wantHead {
		t.Fatal("expected first-seen block to remain canonical")
	}
}

func TestForkChoiceMultiBlockReorg(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)

	a1 := childOf(genesis, 1, 1)
	a2 := childOf(a1, 1, 1)
	fc.AddBlock(a1)
	fc.AddBlock(a2)

	b1 := childOf(genesis, 1, 2)
	b2 := childOf(b1, 1, 2)
	b3 := childOf(b2, 5, 2) // pushes branch B's cumulative work above branch A's

	fc.AddBlock(b1)
	fc.AddBlock(b2)
	changed, reorged, err := fc.AddBlock(b3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected branch B to overtake branch A")
	}
	if len(reorged) != 2 {
		t.Fatalf("expected 2 blocks (a1, a2) reorged out, got %d", len(reorged))
	}
	wantHead := mustHash(t, b3)
	if fc.Head() != wantHead {
		t.Fatal("expected b3 to be the new canonical tip")
	}
}

func TestForkChoiceMissingParentRejected(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)
	orphan := Block{Header: BlockHeader{Parent: Hash{0xFF}, Height: 1, Difficulty: 1}}
	_, _, err := fc.AddBlock(orphan)
	if err == nil {
		t.Fatal("expected missing-parent block to be rejected")
	}
	fcErr, ok := err.(*ForkChoiceError)
	if !ok || fcErr.Kind != ForkChoiceMissingParent {
		t.Fatalf("expected ForkChoiceMissingParent, got %v", err)
	}
}

func TestForkChoiceForcedCheckpointOverridesWork(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)

	weak := childOf(genesis, 1, 1)
	strong := childOf(genesis, 100, 2)

	weakHash := mustHash(t, weak)
	fc.AddCheckpoint(1, weakHash)

	fc.AddBlock(weak)
	changed, _, err := fc.AddBlock(strong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("forced checkpoint should have prevented the higher-difficulty block from becoming canonical")
	}
	if fc.Head() != weakHash {
		t.Fatal("expected checkpointed block to remain canonical despite lower difficulty")
	}
}

func TestForkChoiceFindOrphansAt(t *testing.T) {
	genesis := genesisBlock()
	fc, _ := NewForkChoice(genesis)
	first := childOf(genesis, 1, 1)
	second := childOf(genesis, 9, 2)
	fc.AddBlock(first)
	fc.AddBlock(second)

	orphans := fc.FindOrphansAt(1)
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan at height 1, got %d", len(orphans))
	}
	orphanHash := mustHash(t, orphans[0])
	if orphanHash != mustHash(t, second) {
		t.Fatal("expected the later-seen single-block fork to be the orphan, regardless of its higher difficulty")
	}
}
