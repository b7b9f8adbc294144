// Package host is the environment untrusted contracts run against.
//
// A Host owns a budget, an object store and a stack of frames. Values cross
// the guest boundary as 64-bit Vals; anything larger lives in the store and
// is referenced by handle. Guest frames only ever see handles relative to
// the frame, so a guest cannot name an object it was not given.
//
// Every operation charges the budget before it does work proportional to
// its input, and every failure is an *errors.Error carrying a status. A
// frame that fails discards the objects it created.
//
// Basic usage:
//
//	h := host.New(host.WithLogger(logger))
//	defer h.Close(ctx)
//
//	addr, err := h.RegisterContract(code)
//	if err != nil {
//	    return err
//	}
//	res, err := h.InvokeFunction(ctx, addr, "transfer", args)
package host
