package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
	"github.com/wippyai/contract-host/vm"
)

// Limits bounds the host's recursion.
type Limits struct {
	// Wire bounds serialized values.
	Wire scval.Limits
	// MaxFrameDepth caps nested invocations.
	MaxFrameDepth int
	// MaxValueDepth caps Vec/Map nesting during conversion and comparison.
	MaxValueDepth int
}

// DefaultLimits are used unless WithLimits overrides them.
var DefaultLimits = Limits{
	Wire:          scval.DefaultLimits,
	MaxFrameDepth: 16,
	MaxValueDepth: 100,
}

// Option configures a Host.
type Option func(*Host)

// WithBudget makes the host charge b instead of a fresh default budget.
func WithBudget(b *budget.Budget) Option {
	return func(h *Host) { h.budget = b }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(h *Host) { h.limits = l }
}

// WithVMConfig sets the configuration of the engine created on first
// contract invocation.
func WithVMConfig(c vm.Config) Option {
	return func(h *Host) { h.vmConfig = c }
}

// Host is the environment of one guest invocation and everything it calls.
// It is not safe for concurrent use.
type Host struct {
	budget    *budget.Budget
	store     *object.Store
	logger    *zap.Logger
	engine    *vm.Engine
	contracts map[[32]byte][]byte
	frames    []*Frame
	vmConfig  vm.Config
	limits    Limits
}

// New creates a host with an empty object store.
func New(opts ...Option) *Host {
	h := &Host{
		limits:    DefaultLimits,
		contracts: make(map[[32]byte][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.budget == nil {
		h.budget = budget.Default()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.store = object.NewStore(h.budget)
	return h
}

// Budget returns the budget every host operation charges.
func (h *Host) Budget() *budget.Budget {
	return h.budget
}

// Store returns the object store.
func (h *Host) Store() *object.Store {
	return h.store
}

// Limits returns the active limits.
func (h *Host) Limits() Limits {
	return h.limits
}

// Close discards every object and releases the VM engine.
func (h *Host) Close(ctx context.Context) error {
	h.store.Close()
	if h.engine != nil {
		err := h.engine.Close(ctx)
		h.engine = nil
		return err
	}
	return nil
}

func (h *Host) charge(ty budget.CostType, input uint64) error {
	if err := h.budget.Charge(ty, input); err != nil {
		h.logger.Warn("budget exceeded",
			zap.Stringer("cost", ty),
			zap.Uint64("cpu", h.budget.CPUConsumed()),
			zap.Uint64("mem", h.budget.MemConsumed()))
		return err
	}
	return nil
}

// add inserts obj into the store.
func (h *Host) add(obj object.Object) (val.Val, error) {
	return h.store.Add(obj)
}

func get[T object.Object](h *Host, v val.Val) (T, error) {
	return object.Get[T](h.store, v)
}

// checkVal rejects malformed Vals coming from outside the host.
func checkVal(v val.Val) error {
	if !v.IsGood() {
		return errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("malformed value %#x", uint64(v)).
			Build()
	}
	return nil
}

// validate checks v and, for a handle, that it resolves.
func (h *Host) validate(v val.Val) error {
	if err := checkVal(v); err != nil {
		return err
	}
	if v.IsObject() {
		_, err := h.store.Get(v)
		return err
	}
	return nil
}
