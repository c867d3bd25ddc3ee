// Package effect models pending entity mutations and domain events as an
// immutable value that business logic returns instead of touching the
// database directly. Descriptors combine with Append and are applied in one
// transaction by the Materializer.
package effect

// Op tags the kind of mutation requested for an entity.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entity is anything the persistence layer knows how to store.
type Entity interface {
	EntityKind() string
}

// Event is a domain event to be published once the owning descriptor's
// mutations have been applied.
type Event interface {
	EventName() string
}

// Mutation is one pending change to a single entity.
type Mutation struct {
	Op     Op
	Entity Entity
}

// Descriptor is an ordered collection of mutations and events. The zero
// value is the empty descriptor and acts as the identity for Append.
type Descriptor struct {
	mutations []Mutation
	events    []Event
}

// Add returns a descriptor containing a single create mutation.
func Add(e Entity) Descriptor {
	return Descriptor{mutations: []Mutation{{Op: OpAdd, Entity: e}}}
}

// Update returns a descriptor containing a single update mutation.
func Update(e Entity) Descriptor {
	return Descriptor{mutations: []Mutation{{Op: OpUpdate, Entity: e}}}
}

// Delete returns a descriptor containing a single delete mutation.
func Delete(e Entity) Descriptor {
	return Descriptor{mutations: []Mutation{{Op: OpDelete, Entity: e}}}
}

// Emit returns a descriptor containing a single event and no mutations.
func Emit(ev Event) Descriptor {
	return Descriptor{events: []Event{ev}}
}

// Append combines descriptors left to right, preserving declaration order
// of both mutations and events.
func (d Descriptor) Append(others ...Descriptor) Descriptor {
	out := Descriptor{
		mutations: append([]Mutation(nil), d.mutations...),
		events:    append([]Event(nil), d.events...),
	}
	for _, o := range others {
		out.mutations = append(out.mutations, o.mutations...)
		out.events = append(out.events, o.events...)
	}
	return out
}

// Empty reports whether the descriptor carries no mutations and no events.
func (d Descriptor) Empty() bool {
	return len(d.mutations) == 0 && len(d.events) == 0
}

// Mutations returns the pending mutations in declaration order.
func (d Descriptor) Mutations() []Mutation {
	return d.mutations
}

// Events returns the pending events in declaration order.
func (d Descriptor) Events() []Event {
	return d.events
}
