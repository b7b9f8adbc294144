package object

import (
	"fmt"
	"math"
	"sync"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/val"
)

// Charger meters store work. *budget.Budget satisfies it.
type Charger interface {
	Charge(ty budget.CostType, input uint64) error
}

// EventType identifies a store lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDiscarded
)

// Event describes one object entering or leaving the store.
type Event struct {
	Object Object
	Handle val.Val
	Type   EventType
}

// Observer receives store lifecycle events.
type Observer interface {
	OnObjectEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnObjectEvent(e Event) { f(e) }

// Mark is a rollback point returned by Store.Mark.
type Mark struct {
	len int
}

type slot struct {
	obj Object
	gen uint32
}

// Store is the arena of host objects. A handle is the pair (index,
// generation) packed into a Val. Rolling back to a mark truncates the arena
// and advances the generation, so handles into the discarded range never
// resolve again, even after their indices are reused.
type Store struct {
	meter     Charger
	slots     []slot
	observers []Observer
	mu        sync.RWMutex
	gen       uint32
	sealed    bool
}

// NewStore creates an empty store charging m.
func NewStore(m Charger) *Store {
	return &Store{
		meter: m,
		slots: make([]slot, 0, 64),
		gen:   1,
	}
}

// Add charges for obj and inserts it, returning an absolute handle.
func (s *Store) Add(obj Object) (val.Val, error) {
	if obj == nil {
		return 0, errors.Internal(errors.TypeObject, "nil object")
	}
	if err := s.meter.Charge(budget.MemAlloc, obj.Size()); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return 0, errGenerationsExhausted()
	}
	if uint64(len(s.slots)) >= math.MaxUint32 {
		s.mu.Unlock()
		return 0, errors.ExceededLimit(errors.TypeObject, "object arena full")
	}
	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot{obj: obj, gen: s.gen})
	h := val.FromHandle(obj.Tag(), idx, s.gen)
	s.mu.Unlock()

	s.notify(Event{Type: EventCreated, Handle: h, Object: obj})
	return h, nil
}

// Get resolves an absolute handle. It fails with (Value, UnexpectedType)
// for non-object Vals, (Object, InvalidInput) for handles that do not
// resolve, and (Object, UnexpectedType) when the tag disagrees with the
// object.
func (s *Store) Get(v val.Val) (Object, error) {
	idx, gen, ok := v.Handle()
	if !ok {
		return nil, errors.UnexpectedType(errors.TypeValue, "object", v.Tag().String())
	}
	if err := s.meter.Charge(budget.VisitObject, 0); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if uint64(idx) >= uint64(len(s.slots)) || s.slots[idx].gen != gen {
		return nil, errors.New(errors.TypeObject, errors.CodeInvalidInput).
			Detail("unknown object handle %s", v).
			Value(v).
			Build()
	}
	obj := s.slots[idx].obj
	if obj.Tag() != v.Tag() {
		return nil, errors.UnexpectedType(errors.TypeObject, v.Tag().String(), obj.Tag().String())
	}
	return obj, nil
}

// Get resolves v and asserts the object's Go type.
func Get[T Object](s *Store, v val.Val) (T, error) {
	var zero T
	obj, err := s.Get(v)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.UnexpectedType(errors.TypeObject, fmt.Sprintf("%T", zero), fmt.Sprintf("%T", obj))
	}
	return t, nil
}

// Mark returns the current rollback point.
func (s *Store) Mark() Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Mark{len: len(s.slots)}
}

// Rollback discards every object added after m. The discarded objects are
// always gone afterwards; if the generation space is used up the store is
// sealed against new objects and (Context, ExceededLimit) is returned, so
// no stale handle can come back to life.
func (s *Store) Rollback(m Mark) error {
	s.mu.Lock()
	if m.len >= len(s.slots) {
		s.mu.Unlock()
		return nil
	}
	discarded := make([]Event, 0, len(s.slots)-m.len)
	for i := m.len; i < len(s.slots); i++ {
		sl := s.slots[i]
		discarded = append(discarded, Event{
			Type:   EventDiscarded,
			Handle: val.FromHandle(sl.obj.Tag(), uint32(i), sl.gen),
			Object: sl.obj,
		})
		s.slots[i] = slot{}
	}
	s.slots = s.slots[:m.len]
	var err error
	if s.gen < val.MaxGeneration {
		s.gen++
	} else {
		s.sealed = true
		err = errGenerationsExhausted()
	}
	s.mu.Unlock()

	for _, e := range discarded {
		s.notify(e)
	}
	return err
}

func errGenerationsExhausted() error {
	return errors.ExceededLimit(errors.TypeContext, "object generations exhausted")
}

// GenerationsLeft reports how many more rollbacks can invalidate handles.
// Callers that open a rollback scope must refuse when it reaches zero.
func (s *Store) GenerationsLeft() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return val.MaxGeneration - s.gen
}

// Generation returns the generation new handles are stamped with.
func (s *Store) Generation() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Close discards every object.
func (s *Store) Close() {
	_ = s.Rollback(Mark{})
}

// Subscribe adds an observer for lifecycle events.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Store) notify(e Event) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, o := range observers {
		o.OnObjectEvent(e)
	}
}
