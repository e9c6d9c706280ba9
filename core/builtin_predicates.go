package core

// Built-in predicates (spec §4.3, §5): the small set of atomic propositions
// every model and rule may use without declaring a custom WASM module.
// Evaluated natively rather than through the predicate executor — they are
// simple, fixed, and need no sandboxing — while custom predicates resolve
// by name to a WASM module hash stored under /_code/modal/*.wasm and run
// through PredicateExecutor.Evaluate.

import (
	"fmt"
	"strconv"
	"strings"
)

// Names of the predicates resolved natively.
const (
	PredSignedBy      = "signed_by"
	PredAnySigned     = "any_signed"
	PredAllSigned     = "all_signed"
	PredThreshold     = "threshold"
	PredModifies      = "modifies"
	PredBefore        = "before"
	PredAfter         = "after"
	PredOracleAttests = "oracle_attests"
)

var builtinNames = map[string]bool{
	PredSignedBy: true, PredAnySigned: true, PredAllSigned: true,
	PredThreshold: true, PredModifies: true, PredBefore: true,
	PredAfter: true, PredOracleAttests: true,
}

// IsBuiltin reports whether name is resolved natively rather than against a
// /_code/modal/<name>.wasm module.
func IsBuiltin(name string) bool { return builtinNames[name] }

// CommitContext is the evaluation context a rule/predicate checks against:
// the candidate commit's signer set, the provisional path store snapshot
// produced by applying it, the set of paths it touches, and the timestamp of
// the block carrying it. Grounded on the teacher's VMContext (core/virtual_machine.go)
// pattern of bundling "everything a predicate might read" into one struct.
type CommitContext struct {
	Signers      map[string]bool // raw ed25519 public keys (as strings) of the commit's signers
	Store        *PathStore      // provisional snapshot after applying the commit
	WrittenPaths []string        // paths POSTed/ACTIONed/DELETEd by the commit body
	Timestamp    int64           // unix seconds
	Oracles      map[string]map[string]string // oracle id -> claim -> attested value
}

// EvalBuiltin evaluates a built-in predicate by name against ctx.
func EvalBuiltin(name string, args []string, ctx *CommitContext) (bool, error) {
	switch name {
	case PredSignedBy:
		if len(args) != 1 {
			return false, fmt.Errorf("signed_by expects 1 argument, got %d", len(args))
		}
		id, ok := ctx.Store.Get(args[0])
		if !ok || id.Type != LeafPublicKey {
			return false, nil
		}
		return ctx.Signers[string(id.PK)], nil

	case PredAnySigned:
		if len(args) != 1 {
			return false, fmt.Errorf("any_signed expects 1 argument, got %d", len(args))
		}
		for _, path := range ctx.Store.ListDir(args[0]) {
			id, ok := ctx.Store.Get(path)
			if ok && id.Type == LeafPublicKey && ctx.Signers[string(id.PK)] {
				return true, nil
			}
		}
		return false, nil

	case PredAllSigned:
		if len(args) != 1 {
			return false, fmt.Errorf("all_signed expects 1 argument, got %d", len(args))
		}
		paths := ctx.Store.ListDir(args[0])
		if len(paths) == 0 {
			return false, nil
		}
		for _, path := range paths {
			id, ok := ctx.Store.Get(path)
			if !ok || id.Type != LeafPublicKey {
				continue
			}
			if !ctx.Signers[string(id.PK)] {
				return false, nil
			}
		}
		return true, nil

	case PredThreshold:
		if len(args) != 2 {
			return false, fmt.Errorf("threshold expects 2 arguments, got %d", len(args))
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("threshold: bad count %q", args[0])
		}
		count := 0
		for _, path := range ctx.Store.ListDir(args[1]) {
			id, ok := ctx.Store.Get(path)
			if ok && id.Type == LeafPublicKey && ctx.Signers[string(id.PK)] {
				count++
			}
		}
		return count >= n, nil

	case PredModifies:
		if len(args) != 1 {
			return false, fmt.Errorf("modifies expects 1 argument, got %d", len(args))
		}
		for _, w := range ctx.WrittenPaths {
			if ModifiedUnder(w, args[0]) {
				return true, nil
			}
		}
		return false, nil

	case PredBefore:
		if len(args) != 1 {
			return false, fmt.Errorf("before expects 1 argument, got %d", len(args))
		}
		ts, err := resolveTimestamp(ctx.Store, args[0])
		if err != nil {
			return false, err
		}
		return ctx.Timestamp < ts, nil

	case PredAfter:
		if len(args) != 1 {
			return false, fmt.Errorf("after expects 1 argument, got %d", len(args))
		}
		ts, err := resolveTimestamp(ctx.Store, args[0])
		if err != nil {
			return false, err
		}
		return ctx.Timestamp > ts, nil

	case PredOracleAttests:
		if len(args) != 3 {
			return false, fmt.Errorf("oracle_attests expects 3 arguments, got %d", len(args))
		}
		oracleID, claim, want := args[0], args[1], args[2]
		attested, ok := ctx.Oracles[oracleID][claim]
		return ok && attested == want, nil

	default:
		return false, fmt.Errorf("unknown builtin predicate %q", name)
	}
}

func resolveTimestamp(store *PathStore, path string) (int64, error) {
	v, ok := store.Get(path)
	if !ok {
		return 0, fmt.Errorf("timestamp path %q has no value", path)
	}
	switch v.Type {
	case LeafInt:
		return v.Int, nil
	case LeafText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("timestamp path %q is not numeric text", path)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("timestamp path %q has non-numeric leaf type %s", path, v.Type)
	}
}

// ModuleHashForPredicate resolves a non-builtin predicate name to its
// content-addressed module hash via the contract's own registered-code
// directory, /_code/modal/<name>.wasm.
func ModuleHashForPredicate(store *PathStore, name string) (Hash, error) {
	path := "/_code/modal/" + name + ".wasm"
	v, ok := store.Get(path)
	if !ok || v.Type != LeafWASM {
		return Hash{}, fmt.Errorf("no registered predicate module for %q", name)
	}
	return v.WASM, nil
}
