package core

// Error taxonomy for the Modality core, following the teacher's
// fmt.Errorf("...: %w", err) wrapping style (pkg/utils.Wrap) rather than a
// heavyweight error-code framework.

import "fmt"

// ParseErrorCategory classifies a parse failure against a source span.
type ParseErrorCategory string

const (
	ParseErrorLexical  ParseErrorCategory = "lexical"
	ParseErrorSyntatic ParseErrorCategory = "syntactic"
	ParseErrorSemantic ParseErrorCategory = "semantic"
)

// SourceSpan locates a parse error within the original text.
type SourceSpan struct {
	Line, Col int
	Offset    int
}

// ParseError reports a lexical, syntactic, or semantic failure while parsing
// a model or formula. Parse errors are never retried.
type ParseError struct {
	Category ParseErrorCategory
	Span     SourceSpan
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s error at %d:%d: %s", e.Category, e.Span.Line, e.Span.Col, e.Message)
}

// SignatureError reports a cryptographic verification failure. The offending
// commit or block is rejected and never retried.
type SignatureError struct {
	Signer  string
	Message string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error (signer=%s): %s", e.Signer, e.Message)
}

// RuleViolation reports that a candidate commit failed admissibility under an
// accumulated rule, or that a predicate evaluation underlying a rule failed.
type RuleViolation struct {
	RuleID string
	Reason string
	Cause  error
}

func (e *RuleViolation) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rule %s violated: %s: %v", e.RuleID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("rule %s violated: %s", e.RuleID, e.Reason)
}

func (e *RuleViolation) Unwrap() error { return e.Cause }

// PredicateErrorKind enumerates the sandboxed-execution failure modes of C2.
type PredicateErrorKind string

const (
	PredicateOutOfFuel     PredicateErrorKind = "out_of_fuel"
	PredicateInvalidModule PredicateErrorKind = "invalid_module"
	PredicateExecutionTrap PredicateErrorKind = "execution_trap"
	PredicateHostAbort     PredicateErrorKind = "host_abort"
	PredicateDecodeError   PredicateErrorKind = "decode_error"
	PredicateCancelled     PredicateErrorKind = "cancelled"
)

// PredicateError reports a sandboxed WASM execution failure. When reached via
// rule checking it surfaces to C4 wrapped in a RuleViolation.
type PredicateError struct {
	Kind    PredicateErrorKind
	Message string
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("predicate error (%s): %s", e.Kind, e.Message)
}

// AsRuleViolation wraps a PredicateError as the cause of a RuleViolation, the
// propagation policy required by spec §7.
func (e *PredicateError) AsRuleViolation(ruleID string) *RuleViolation {
	return &RuleViolation{RuleID: ruleID, Reason: string(e.Kind), Cause: e}
}

// ConsensusErrorKind enumerates BFT DAG runner (C5a) failure modes.
type ConsensusErrorKind string

const (
	ConsensusInsufficientParents ConsensusErrorKind = "insufficient_parents"
	ConsensusQuorumNotReached    ConsensusErrorKind = "quorum_not_reached"
	ConsensusEquivocation        ConsensusErrorKind = "equivocation"
	ConsensusRoundTimeout        ConsensusErrorKind = "round_timeout"
)

type ConsensusError struct {
	Kind    ConsensusErrorKind
	Scribe  string
	Message string
}

func (e *ConsensusError) Error() string {
	if e.Scribe != "" {
		return fmt.Sprintf("consensus error (%s, scribe=%s): %s", e.Kind, e.Scribe, e.Message)
	}
	return fmt.Sprintf("consensus error (%s): %s", e.Kind, e.Message)
}

// ForkChoiceErrorKind enumerates C5b rejection reasons.
type ForkChoiceErrorKind string

const (
	ForkChoiceCompetingFirstSeen  ForkChoiceErrorKind = "competing_first_seen"
	ForkChoiceMissingParent       ForkChoiceErrorKind = "missing_parent"
	ForkChoiceWrongParent         ForkChoiceErrorKind = "wrong_parent"
	ForkChoiceForcedForkMismatch  ForkChoiceErrorKind = "forced_fork_mismatch"
	ForkChoiceLowerDifficulty     ForkChoiceErrorKind = "lower_difficulty"
	ForkChoiceDuplicate           ForkChoiceErrorKind = "duplicate"
)

type ForkChoiceError struct {
	Kind    ForkChoiceErrorKind
	Message string
}

func (e *ForkChoiceError) Error() string {
	return fmt.Sprintf("fork choice error (%s): %s", e.Kind, e.Message)
}

// TransportErrorKind enumerates transport-collaborator failure modes (§6/§7).
// Nothing in this module retries a failed transport call: Publish and
// Subscribe return the error to their caller as is.
type TransportErrorKind string

const (
	TransportPeerUnreachable TransportErrorKind = "peer_unreachable"
	TransportProtocolMismatch TransportErrorKind = "protocol_mismatch"
	TransportTimeout          TransportErrorKind = "timeout"
)

type TransportError struct {
	Kind    TransportErrorKind
	Peer    string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s, peer=%s): %s", e.Kind, e.Peer, e.Message)
}

// PersistenceErrorKind enumerates datastore failure modes.
type PersistenceErrorKind string

const (
	PersistenceCorruptRecord  PersistenceErrorKind = "corrupt_record"
	PersistenceLockContention PersistenceErrorKind = "lock_contention"
)

type PersistenceError struct {
	Kind    PersistenceErrorKind
	Message string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %s", e.Kind, e.Message)
}

// Wrap adds context to an error, returning nil if err is nil. Mirrors the
// ambient pkg/utils.Wrap helper for use inside the core package without an
// import cycle.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
