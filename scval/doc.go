// Package scval defines the external value tree exchanged across the host
// boundary, its total order, and its serialized form.
//
// ScVal mirrors every Val variant plus the ledger-only variants the host
// never converts. Vectors and maps are optional in the tree; the absent form
// round-trips through the codec but is refused by the host.
//
// The serialized form is CBOR: each value is an array whose first element is
// the Type, followed by the payload fields. Encoding is deterministic, so
// equal values always produce identical bytes.
package scval
