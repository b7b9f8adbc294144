// Package object provides the arena that backs guest-visible object handles.
//
// Objects are immutable host values (integers too wide for an inline Val,
// byte buffers, strings, symbols, vectors, maps and addresses). Every object
// is charged to the meter before it is inserted. Handles are never reused
// while they can still resolve: the arena stamps each slot with the store
// generation and a rollback advances it.
//
//	store := object.NewStore(b)
//	mark := store.Mark()
//	h, err := store.Add(object.Bytes("payload"))
//	...
//	_ = store.Rollback(mark) // h no longer resolves
//
// Observers receive EventCreated for every insertion and EventDiscarded for
// every object dropped by a rollback.
package object
