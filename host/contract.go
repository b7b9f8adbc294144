package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
	"github.com/wippyai/contract-host/vm"
)

// RegisterContract stores code under its SHA-256 and returns the contract's
// address. Registering the same code twice returns the same address.
func (h *Host) RegisterContract(code []byte) (scval.ScAddress, error) {
	if err := h.charge(budget.ComputeSha256Hash, uint64(len(code))); err != nil {
		return scval.ScAddress{}, err
	}
	hash := sha256.Sum256(code)
	if _, ok := h.contracts[hash]; !ok {
		h.contracts[hash] = clone(code)
		h.logger.Info("contract registered",
			zap.String("hash", hex.EncodeToString(hash[:])),
			zap.Int("size", len(code)))
	}
	return scval.ScAddress{Kind: scval.AddressContract, ID: hash}, nil
}

// InvokeFunction calls fn on the contract at addr with wire-format
// arguments and returns its result in wire format. Objects created along
// the way stay in the store only if the call succeeds.
func (h *Host) InvokeFunction(ctx context.Context, addr scval.ScAddress, fn string, args []scval.ScVal) (scval.ScVal, error) {
	var out scval.ScVal
	_, err := h.WithFrame(&Frame{Kind: FrameHost, FnName: fn}, func() (val.Val, error) {
		vals := make([]val.Val, len(args))
		for i, a := range args {
			v, err := h.FromScVal(a)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		res, err := h.callContract(ctx, addr, fn, vals)
		if err != nil {
			return 0, err
		}
		out, err = h.ToScVal(res)
		return res, err
	})
	if err != nil {
		return scval.ScVal{}, err
	}
	return out, nil
}

// Call invokes a contract with host values: addr is an address object, fn a
// symbol and args a vector.
func (h *Host) Call(ctx context.Context, addr, fn, args val.Val) (val.Val, error) {
	a, err := get[object.Address](h, addr)
	if err != nil {
		return 0, err
	}
	if err := h.expectSymbol(fn); err != nil {
		return 0, err
	}
	name, err := h.bytesOf(fn)
	if err != nil {
		return 0, err
	}
	vec, err := get[object.Vec](h, args)
	if err != nil {
		return 0, err
	}
	return h.callContract(ctx, scval.ScAddress(a), string(name), vec)
}

// TryCall is Call with recoverable failures returned as status values. The
// failed call's objects are already discarded. Budget exhaustion, a
// cancelled ctx and host defects still fail the caller.
func (h *Host) TryCall(ctx context.Context, addr, fn, args val.Val) (val.Val, error) {
	res, err := h.Call(ctx, addr, fn, args)
	if err == nil {
		return res, nil
	}
	if !recoverable(err) || ctx.Err() != nil {
		return 0, err
	}
	h.logger.Debug("try_call failed", zap.Error(err))
	return val.FromError(err), nil
}

func recoverable(err error) bool {
	t, c := errors.Status(err)
	switch {
	case c == errors.CodeInternalError && t != errors.TypeContract:
		return false
	case t == errors.TypeBudget && c == errors.CodeExceededLimit:
		return false
	}
	return true
}

// FailWithError turns a contract status value into an error.
func (h *Host) FailWithError(status val.Val) error {
	t, c, ok := status.Status()
	if !ok || t != errors.TypeContract {
		return errors.UnexpectedType(errors.TypeContext, "contract error", status.Tag().String())
	}
	return errors.Contract(uint32(c))
}

func (h *Host) vmEngine(ctx context.Context) (*vm.Engine, error) {
	if h.engine != nil {
		return h.engine, nil
	}
	cfg := h.vmConfig
	cfg.Meter = insnMeter{h.budget}
	eng, err := vm.NewEngine(ctx, &cfg, h.HostFuncs(), h.logger)
	if err != nil {
		return nil, err
	}
	h.engine = eng
	return eng, nil
}

func (h *Host) callContract(ctx context.Context, addr scval.ScAddress, fn string, args []val.Val) (val.Val, error) {
	code, ok := h.contracts[addr.ID]
	if addr.Kind != scval.AddressContract || !ok {
		return 0, errors.New(errors.TypeStorage, errors.CodeMissingValue).
			Detail("no contract at %x", addr.ID[:8]).
			Build()
	}
	eng, err := h.vmEngine(ctx)
	if err != nil {
		return 0, err
	}
	if err := h.charge(budget.VmInstantiation, uint64(len(code))); err != nil {
		return 0, err
	}
	inst, err := eng.Instantiate(ctx, addr.ID, code)
	if err != nil {
		return 0, err
	}
	defer func() { _ = inst.Close(ctx) }()

	frame := &Frame{
		Kind:     FrameGuest,
		Instance: inst,
		Contract: ContractID{Address: addr, Hash: addr.ID},
		FnName:   fn,
		Args:     args,
	}
	return h.WithFrame(frame, func() (val.Val, error) {
		raw := make([]uint64, len(args))
		for i, a := range args {
			rel, err := h.relativize(a)
			if err != nil {
				return 0, err
			}
			raw[i] = uint64(rel)
		}
		if err := h.charge(budget.InvokeVmFunction, 0); err != nil {
			return 0, err
		}
		res, err := inst.Invoke(ctx, fn, raw)
		if err != nil {
			return 0, err
		}
		v, err := h.absolutize(val.Val(res))
		if err != nil {
			return 0, err
		}
		return v, h.validate(v)
	})
}

// insnMeter charges guest instructions as WasmInsnExec.
type insnMeter struct {
	b *budget.Budget
}

func (m insnMeter) Fuel() uint64 {
	return m.b.Affordable(budget.WasmInsnExec, 0)
}

func (m insnMeter) Consume(n uint64) error {
	return m.b.BulkCharge(budget.WasmInsnExec, n, 0)
}
