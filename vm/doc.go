// Package vm embeds wazero as the virtual machine that runs guest contracts.
//
// An Engine owns one runtime and a host module named "env" whose functions
// all take and return raw 64-bit words. Guest modules are compiled once per
// content hash and instantiated fresh for every invocation. A host function
// that fails traps the guest; Invoke returns the host's error unchanged so
// callers can branch on its status.
//
// Guests are metered. Instrument rewrites every module before compilation
// so that function entries and loop headers draw down an exported fuel
// global; Invoke fills it from the engine's Meter and charges what was used
// whenever control returns to the host. A guest that runs dry traps with
// (Budget, ExceededLimit). The runtime also closes an instance when the
// invocation's context is done.
//
// Memory is the bounds-checked view of a guest's linear memory that the
// host's marshaling layer works through.
package vm
