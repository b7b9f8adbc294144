package host

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
	"github.com/wippyai/contract-host/vm"
)

// FrameKind distinguishes host-driven scopes from guest invocations.
type FrameKind uint8

const (
	FrameHost FrameKind = iota
	FrameGuest
)

func (k FrameKind) String() string {
	if k == FrameGuest {
		return "guest"
	}
	return "host"
}

// FrameState is the lifecycle state of a Frame.
type FrameState uint8

const (
	FrameActive FrameState = iota
	FrameCommitted
	FrameRolledBack
)

func (s FrameState) String() string {
	switch s {
	case FrameActive:
		return "active"
	case FrameCommitted:
		return "committed"
	case FrameRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// ContractID identifies the contract a guest frame executes.
type ContractID struct {
	Address scval.ScAddress
	Hash    [32]byte
}

// Frame is one scope on the host's frame stack. Objects created while it is
// on top are discarded if it fails.
type Frame struct {
	Instance *vm.Instance
	Contract ContractID
	FnName   string
	Args     []val.Val
	// RelativeObjects holds the absolute handles a guest frame has been
	// given. The guest sees each as its index here with generation zero.
	RelativeObjects []val.Val
	Kind            FrameKind
	State           FrameState
	mark            object.Mark
	relIndex        map[val.Val]uint32
}

// Depth returns the number of frames on the stack.
func (h *Host) Depth() int {
	return len(h.frames)
}

// CurrentFrame returns the top frame, or nil.
func (h *Host) CurrentFrame() *Frame {
	if len(h.frames) == 0 {
		return nil
	}
	return h.frames[len(h.frames)-1]
}

// WithFrame pushes f, runs fn and pops f. If fn fails, every object created
// since the push is discarded and f ends RolledBack; otherwise f ends
// Committed and its objects stay visible to the enclosing scope. Budget
// consumption is never rolled back. A panic inside fn is recovered and
// reported as (Context, InternalError).
func (h *Host) WithFrame(f *Frame, fn func() (val.Val, error)) (res val.Val, err error) {
	if len(h.frames) >= h.limits.MaxFrameDepth {
		return 0, errors.New(errors.TypeContext, errors.CodeExceededLimit).
			Detail("frame depth %d exceeds %d", len(h.frames)+1, h.limits.MaxFrameDepth).
			Build()
	}
	if h.store.GenerationsLeft() == 0 {
		return 0, errors.ExceededLimit(errors.TypeContext, "object generations exhausted")
	}

	f.mark = h.store.Mark()
	f.State = FrameActive
	h.frames = append(h.frames, f)
	h.logger.Debug("frame push",
		zap.Stringer("kind", f.Kind),
		zap.String("fn", f.FnName),
		zap.Int("depth", len(h.frames)))

	defer func() {
		if r := recover(); r != nil {
			res = 0
			err = errors.New(errors.TypeContext, errors.CodeInternalError).
				Detail("panic in frame %q: %v", f.FnName, r).
				Build()
		}
		h.frames = h.frames[:len(h.frames)-1]
		if err != nil {
			if rbErr := h.store.Rollback(f.mark); rbErr != nil {
				err = rbErr
			}
			f.State = FrameRolledBack
			h.logger.Debug("frame rolled back", zap.String("fn", f.FnName), zap.Error(err))
			return
		}
		f.State = FrameCommitted
		h.logger.Debug("frame committed", zap.String("fn", f.FnName))
	}()

	return fn()
}

func (h *Host) guestFrame() *Frame {
	if f := h.CurrentFrame(); f != nil && f.Kind == FrameGuest {
		return f
	}
	return nil
}

// relativeEntrySize is what one relative table slot is charged as: the
// handle plus its index entry.
const relativeEntrySize = 16

// relativize translates a Val leaving the host for the current guest frame.
// Handing the same object to a frame twice reuses its slot.
// Outside a guest frame it is the identity.
func (h *Host) relativize(v val.Val) (val.Val, error) {
	f := h.guestFrame()
	if f == nil || !v.IsObject() {
		return v, nil
	}
	if idx, ok := f.relIndex[v]; ok {
		return val.FromHandle(v.Tag(), idx, 0), nil
	}
	if uint64(len(f.RelativeObjects)) >= math.MaxUint32 {
		return 0, errors.ExceededLimit(errors.TypeObject, "relative object table full")
	}
	if err := h.charge(budget.MemAlloc, relativeEntrySize); err != nil {
		return 0, err
	}
	if f.relIndex == nil {
		f.relIndex = make(map[val.Val]uint32)
	}
	idx := uint32(len(f.RelativeObjects))
	f.RelativeObjects = append(f.RelativeObjects, v)
	f.relIndex[v] = idx
	return val.FromHandle(v.Tag(), idx, 0), nil
}

// absolutize validates a Val supplied by the current guest frame and
// translates its handle back. Guests may only present relative handles they
// were given.
func (h *Host) absolutize(v val.Val) (val.Val, error) {
	if err := checkVal(v); err != nil {
		return 0, err
	}
	f := h.guestFrame()
	if f == nil || !v.IsObject() {
		return v, nil
	}
	idx, gen, _ := v.Handle()
	if gen != 0 {
		return 0, errors.New(errors.TypeObject, errors.CodeInvalidInput).
			Detail("absolute handle %s from guest", v).
			Build()
	}
	if uint64(idx) >= uint64(len(f.RelativeObjects)) {
		return 0, errors.New(errors.TypeObject, errors.CodeInvalidInput).
			Detail("unknown relative handle %s", v).
			Build()
	}
	abs := f.RelativeObjects[idx]
	if abs.Tag() != v.Tag() {
		return 0, errors.UnexpectedType(errors.TypeObject, abs.Tag().String(), v.Tag().String())
	}
	return abs, nil
}
