package core

// Sandboxed predicate executor (C2, spec §4.2): loads a content-addressed
// WASM module, instantiates it in a wasmer-go store with a narrow host
// function surface, and evaluates it against a canonical-JSON input under a
// fuel budget. Grounded directly on the teacher's HeavyVM (registerHost,
// hostCtx, the store/module/instance/memory/_start wiring in
// core/virtual_machine.go), adapted from an EVM-flavored bytecode VM to a
// single-export predicate contract: the module exports evaluate(len i32),
// reads its input through env.read_input and hands its JSON result back
// through env.write_output; the i32 that evaluate returns is not read.

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// moduleCacheSize bounds the compiled-module LRU cache (spec §4.2: "MUST
// cache compiled modules keyed by content hash").
const moduleCacheSize = 256

// PredicateExecutor compiles and runs sandboxed predicate modules.
type PredicateExecutor struct {
	engine *wasmer.Engine
	cache  *lru.Cache[Hash, *wasmer.Module]
	log    *logrus.Entry
}

// NewPredicateExecutor constructs an executor with its own wasmer engine and
// compiled-module cache.
func NewPredicateExecutor(log *logrus.Logger) (*PredicateExecutor, error) {
	cache, err := lru.New[Hash, *wasmer.Module](moduleCacheSize)
	if err != nil {
		return nil, Wrap(err, "module cache")
	}
	if log == nil {
		log = logrus.New()
	}
	return &PredicateExecutor{
		engine: wasmer.NewEngine(),
		cache:  cache,
		log:    log.WithField("component", "predicate_executor"),
	}, nil
}

// compile returns the compiled module for code, populating the cache on a
// miss. The cache key is the content hash of the module bytes, matching how
// the path store addresses wasm leaves (LeafWASM stores the same hash).
func (e *PredicateExecutor) compile(code []byte) (*wasmer.Module, Hash, error) {
	h := HashBytes(code)
	if mod, ok := e.cache.Get(h); ok {
		return mod, h, nil
	}
	store := wasmer.NewStore(e.engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, h, &PredicateError{Kind: PredicateInvalidModule, Message: err.Error()}
	}
	if err := validateModuleImports(mod); err != nil {
		return nil, h, err
	}
	e.cache.Add(h, mod)
	return mod, h, nil
}

// validateModuleImports rejects a module that imports anything outside the
// "env" host surface this executor provides — determinism requires no
// ambient access to wall-clock time, randomness, or I/O beyond the host
// functions listed below (spec §4.2 "MUST be deterministic").
func validateModuleImports(mod *wasmer.Module) error {
	allowed := map[string]bool{
		"alloc": true, "read_input": true, "write_output": true,
		"sha256": true, "ed25519_verify": true,
		"path_get": true, "path_has": true, "path_list_dir": true,
		"log": true, "abort": true,
	}
	for _, imp := range mod.Imports() {
		if imp.Module() != "env" {
			return &PredicateError{Kind: PredicateInvalidModule, Message: fmt.Sprintf("disallowed import module %q", imp.Module())}
		}
		if !allowed[imp.Name()] {
			return &PredicateError{Kind: PredicateInvalidModule, Message: fmt.Sprintf("disallowed import env.%s", imp.Name())}
		}
	}
	return nil
}

// hostCtx is the per-evaluation state host functions close over, mirroring
// the teacher's hostCtx (mem/store/gas/tx/rec) but scoped to a predicate
// evaluation instead of a contract call.
type hostCtx struct {
	mem    *wasmer.Memory
	gas    *GasMeter
	store  *PathStore
	input  []byte
	output []byte
	aborted string
}

// Evaluate runs the predicate module against a canonical-JSON-encoded input
// value, returning the decoded JSON result. store provides the path reads
// the predicate's env.path_* host calls may perform; it is never mutated.
func (e *PredicateExecutor) Evaluate(code []byte, input interface{}, store *PathStore, gasLimit uint64) (interface{}, uint64, error) {
	meter := NewGasMeter(gasLimit)
	if err := meter.Charge(1000); err != nil { // flat per-call base charge
		return nil, meter.Used(), err
	}

	mod, modHash, err := e.compile(code)
	if err != nil {
		return nil, meter.Used(), err
	}

	inputBytes, err := CanonicalJSON(input)
	if err != nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateDecodeError, Message: err.Error()}
	}

	wstore := wasmer.NewStore(e.engine)
	hctx := &hostCtx{gas: meter, store: store, input: inputBytes}
	imports := e.registerHost(wstore, hctx)

	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateExecutionTrap, Message: err.Error()}
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateInvalidModule, Message: "wasm memory export missing"}
	}
	hctx.mem = mem

	evaluate, err := instance.Exports.GetFunction("evaluate")
	if err != nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateInvalidModule, Message: "evaluate function required"}
	}

	result, err := evaluate(int32(len(inputBytes)))
	if err != nil {
		if hctx.aborted != "" {
			return nil, meter.Used(), &PredicateError{Kind: PredicateHostAbort, Message: hctx.aborted}
		}
		return nil, meter.Used(), &PredicateError{Kind: PredicateExecutionTrap, Message: err.Error()}
	}
	_ = result // module communicates its result via env.write_output, not a return value

	if hctx.output == nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateExecutionTrap, Message: "module produced no output"}
	}

	var decoded interface{}
	if err := json.Unmarshal(hctx.output, &decoded); err != nil {
		return nil, meter.Used(), &PredicateError{Kind: PredicateDecodeError, Message: err.Error()}
	}

	e.log.WithFields(logrus.Fields{
		"module_hash": fmt.Sprintf("%x", modHash.Bytes()),
		"gas_used":    meter.Used(),
	}).Debug("predicate evaluated")

	return decoded, meter.Used(), nil
}

// registerHost wires the "env" import namespace, one function per entry in
// validateModuleImports's allowlist, each charging fuel via hctx.gas before
// doing any work — the host-call-boundary metering strategy documented in
// gas_meter.go.
func (e *PredicateExecutor) registerHost(store *wasmer.Store, h *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	alloc := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.alloc"); err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(args[0].I32())}, nil
		},
	)

	readInput := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.read_input"); err != nil {
				return nil, err
			}
			dst := args[0].I32()
			data := h.mem.Data()
			copy(data[dst:], h.input)
			return []wasmer.Value{wasmer.NewI32(int32(len(h.input)))}, nil
		},
	)

	writeOutput := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.write_output"); err != nil {
				return nil, err
			}
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			out := make([]byte, length)
			copy(out, data[ptr:ptr+length])
			h.output = out
			return []wasmer.Value{}, nil
		},
	)

	sha256Fn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.sha256"); err != nil {
				return nil, err
			}
			ptr, length, dst := args[0].I32(), args[1].I32(), args[2].I32()
			data := h.mem.Data()
			digest := sha256.Sum256(data[ptr : ptr+length])
			copy(data[dst:], digest[:])
			return []wasmer.Value{}, nil
		},
	)

	ed25519Verify := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.ed25519_verify"); err != nil {
				return nil, err
			}
			pkPtr, msgPtr, msgLen, sigPtr := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			data := h.mem.Data()
			pk := ed25519.PublicKey(data[pkPtr : pkPtr+ed25519.PublicKeySize])
			msg := data[msgPtr : msgPtr+msgLen]
			sig := data[sigPtr : sigPtr+ed25519.SignatureSize]
			if ed25519.Verify(pk, msg, sig) {
				return []wasmer.Value{wasmer.NewI32(1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	pathGet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.path_get"); err != nil {
				return nil, err
			}
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			path := string(data[ptr : ptr+length])
			if _, ok := h.store.Get(path); ok {
				return []wasmer.Value{wasmer.NewI32(1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	pathHas := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.path_has"); err != nil {
				return nil, err
			}
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			path := string(data[ptr : ptr+length])
			if h.store.Has(path) {
				return []wasmer.Value{wasmer.NewI32(1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	pathListDir := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.path_list_dir"); err != nil {
				return nil, err
			}
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			prefix := string(data[ptr : ptr+length])
			return []wasmer.Value{wasmer.NewI32(int32(len(h.store.ListDir(prefix))))}, nil
		},
	)

	logFn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.gas.ChargeHostCall("env.log"); err != nil {
				return nil, err
			}
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			e.log.WithField("component", "predicate_module").Debug(string(data[ptr : ptr+length]))
			return []wasmer.Value{}, nil
		},
	)

	abort := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			ptr, length := args[0].I32(), args[1].I32()
			data := h.mem.Data()
			h.aborted = string(data[ptr : ptr+length])
			return []wasmer.Value{}, fmt.Errorf("predicate aborted: %s", h.aborted)
		},
	)

	imports.Register("env", map[string]wasmer.IntoExtern{
		"alloc":          alloc,
		"read_input":     readInput,
		"write_output":   writeOutput,
		"sha256":         sha256Fn,
		"ed25519_verify": ed25519Verify,
		"path_get":       pathGet,
		"path_has":       pathHas,
		"path_list_dir":  pathListDir,
		"log":            logFn,
		"abort":          abort,
	})

	return imports
}
