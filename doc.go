// Package contracthost runs untrusted smart contracts compiled to WebAssembly.
//
// Contracts exchange 64-bit tagged values with the host. Small values travel
// inline; everything else lives in a host-side object store and crosses the
// boundary as a handle. Every unit of host work is charged to a budget, and
// every failure is a typed status rather than a crash.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	contracthost/
//	├── val/        64-bit tagged value encoding
//	├── scval/      Wire value tree, canonical ordering and CBOR codec
//	├── object/     Object arena with generations and rollback marks
//	├── budget/     Dual CPU/memory metering with linear cost models
//	├── errors/     Status taxonomy and structured errors
//	├── vm/         wazero integration: host module, instances, linear memory
//	├── host/       Frames, conversion, comparison, object and memory operations
//	├── config/     TOML configuration
//	└── cmd/run/    Command line runner
//
// # Quick Start
//
//	h := host.New(host.WithLogger(logger))
//	defer h.Close(ctx)
//
//	addr, err := h.RegisterContract(wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := h.InvokeFunction(ctx, addr, "transfer", []scval.ScVal{
//	    scval.Symbol("alice"),
//	    scval.U64(100),
//	})
//
// # Guest Interface
//
// Guests import host functions from the "env" module. Each takes and returns
// i64 words holding tagged values, and guests must export their linear
// memory as "memory". Handles given to a guest are relative to its frame; a
// guest that presents any other handle fails with (Object, InvalidInput).
//
// # Budget
//
// Budget limits cover CPU-equivalent and memory-equivalent cost. Exhaustion
// fails the current call with (Budget, ExceededLimit), and try_call does not
// recover from it.
//
// Guest code is metered too: modules are instrumented at compile time so
// every function entry and loop header charges WasmInsnExec, and a guest
// that spins without calling the host still runs out.
//
// # Thread Safety
//
// A Host and its budget belong to one goroutine. Run independent hosts for
// concurrent invocations.
package contracthost
