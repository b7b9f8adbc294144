package vm

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/contract-host/errors"
)

const (
	// HostModule is the import module name guests use for host functions.
	HostModule = "env"
	// MemoryExport is the linear memory every guest must export.
	MemoryExport = "memory"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps each instance's memory in 64KiB pages.
	// 0 means the wazero default (65536 pages).
	MemoryLimitPages uint32
	// Meter pays for guest instructions. Nil runs guests unmetered.
	Meter Meter
}

// Caller is the guest instance on whose behalf a host function runs.
type Caller interface {
	Memory() Memory
}

// HostFn implements one host function. Every parameter and the result are
// raw 64-bit words. A returned error traps the calling guest and surfaces
// unchanged from the Invoke that started it.
type HostFn func(ctx context.Context, caller Caller, args []uint64) (uint64, error)

// HostFunc binds a HostFn to an import name.
type HostFunc struct {
	Fn     HostFn
	Name   string
	Params int
}

// Engine owns one wazero runtime with the host module instantiated in it.
type Engine struct {
	runtime  wazero.Runtime
	logger   *zap.Logger
	meter    Meter
	compiled map[[32]byte]wazero.CompiledModule
	mu       sync.Mutex
}

// NewEngine creates a runtime and instantiates the host module exposing funcs.
func NewEngine(ctx context.Context, cfg *Config, funcs []HostFunc, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runtimeCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCoreFeatures(api.CoreFeaturesV2.SetEnabled(api.CoreFeatureSIMD, false))
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	var meter Meter = unmetered{}
	if cfg != nil && cfg.Meter != nil {
		meter = cfg.Meter
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	builder := runtime.NewHostModuleBuilder(HostModule)
	for _, hf := range funcs {
		params := make([]api.ValueType, hf.Params)
		for i := range params {
			params[i] = api.ValueTypeI64
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(bindHostFn(hf), params, []api.ValueType{api.ValueTypeI64}).
			Export(hf.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.New(errors.TypeWasmVm, errors.CodeInternalError).
			Detail("instantiate host module").
			Cause(err).
			Build()
	}

	logger.Debug("engine ready", zap.Int("host_functions", len(funcs)))
	return &Engine{
		runtime:  runtime,
		logger:   logger,
		meter:    meter,
		compiled: make(map[[32]byte]wazero.CompiledModule),
	}, nil
}

func bindHostFn(hf HostFunc) api.GoModuleFunc {
	n := hf.Params
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args := make([]uint64, n)
		copy(args, stack[:n])
		t := tankFrom(ctx)
		if t != nil {
			if err := t.burn(); err != nil {
				panic(err)
			}
		}
		res, err := hf.Fn(ctx, caller{mod: mod}, args)
		if err != nil {
			// wazero recovers this and wraps it with %w, so Invoke can
			// recover the original status
			panic(err)
		}
		if t != nil {
			t.refill()
		}
		stack[0] = res
	}
}

type caller struct {
	mod api.Module
}

func (c caller) Memory() Memory {
	return WrapMemory(c.mod.ExportedMemory(MemoryExport))
}

// Instantiate compiles code, reusing an earlier compilation of the same
// hash, and instantiates it anonymously. The module must export "memory".
func (e *Engine) Instantiate(ctx context.Context, hash [32]byte, code []byte) (*Instance, error) {
	compiled, err := e.compile(ctx, hash, code)
	if err != nil {
		return nil, err
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.New(errors.TypeWasmVm, errors.CodeInvalidInput).
			Detail("instantiate module").
			Cause(err).
			Build()
	}
	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, errors.MissingValue(errors.TypeWasmVm, "exported memory")
	}
	fuel, ok := mod.ExportedGlobal(FuelExport).(api.MutableGlobal)
	if !ok {
		_ = mod.Close(ctx)
		return nil, errors.Internal(errors.TypeWasmVm, "instrumented module has no fuel global")
	}

	e.logger.Debug("instantiated", zap.String("hash", shortHash(hash)))
	return &Instance{
		module: mod,
		memory: WrapMemory(mem),
		fuel:   fuel,
		meter:  e.meter,
		logger: e.logger,
	}, nil
}

func (e *Engine) compile(ctx context.Context, hash [32]byte, code []byte) (wazero.CompiledModule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.compiled[hash]; ok {
		return c, nil
	}
	metered, err := Instrument(code)
	if err != nil {
		return nil, errors.New(errors.TypeWasmVm, errors.CodeInvalidInput).
			Detail("instrument module").
			Cause(err).
			Build()
	}
	c, err := e.runtime.CompileModule(ctx, metered)
	if err != nil {
		return nil, errors.New(errors.TypeWasmVm, errors.CodeInvalidInput).
			Detail("compile module").
			Cause(err).
			Build()
	}
	e.compiled[hash] = c
	e.logger.Debug("compiled", zap.String("hash", shortHash(hash)), zap.Int("size", len(code)))
	return c, nil
}

// Close releases the runtime and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func shortHash(h [32]byte) string {
	return hex.EncodeToString(h[:8])
}

// Instance is one instantiated guest module.
type Instance struct {
	module api.Module
	memory Memory
	fuel   api.MutableGlobal
	meter  Meter
	logger *zap.Logger
}

// Memory returns the instance's exported linear memory.
func (i *Instance) Memory() Memory {
	return i.memory
}

// Invoke calls an exported function whose parameters and result are all i64.
// Executed instructions are charged to the engine's Meter; running out is
// (Budget, ExceededLimit). An error raised by a host function during the
// call is returned unchanged, a cancelled ctx is (Context, ExceededLimit)
// and any other trap becomes (WasmVm, InvalidAction).
func (i *Instance) Invoke(ctx context.Context, name string, args []uint64) (uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return 0, errors.MissingValue(errors.TypeWasmVm, "exported function "+name)
	}

	def := fn.Definition()
	if len(def.ParamTypes()) != len(args) {
		return 0, errors.UnexpectedSize(errors.TypeWasmVm, uint64(len(def.ParamTypes())), uint64(len(args)))
	}
	if len(def.ResultTypes()) != 1 {
		return 0, errors.UnexpectedSize(errors.TypeWasmVm, 1, uint64(len(def.ResultTypes())))
	}
	for _, t := range append(def.ParamTypes(), def.ResultTypes()...) {
		if t != api.ValueTypeI64 {
			return 0, errors.UnexpectedType(errors.TypeWasmVm, "i64", api.ValueTypeName(t))
		}
	}

	t := &tank{global: i.fuel, meter: i.meter}
	t.refill()
	results, err := fn.Call(withTank(ctx, t), args...)
	fuelErr := t.burn()
	if err != nil {
		if hostErr, ok := errors.As(err); ok {
			return 0, hostErr
		}
		if fuelErr != nil {
			i.logger.Debug("guest out of fuel", zap.String("func", name))
			return 0, fuelErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, errors.New(errors.TypeContext, errors.CodeExceededLimit).
				Detail("invocation of %s cancelled", name).
				Cause(ctxErr).
				Build()
		}
		i.logger.Debug("guest trapped", zap.String("func", name), zap.Error(err))
		return 0, errors.InvalidAction(errors.TypeWasmVm, "guest trapped in "+name, err)
	}
	if fuelErr != nil {
		return 0, fuelErr
	}
	return results[0], nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
