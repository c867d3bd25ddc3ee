package effect

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/careward/careward/internal/platform/db"
)

// Applier maps a single mutation onto the persistence layer. Implementations
// are expected to honor a transaction carried in the context.
type Applier interface {
	Apply(ctx context.Context, m Mutation) error
}

// Publisher delivers domain events. Delivery guarantees beyond the publish
// call are the bus's responsibility.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Materializer is the only component that performs I/O for a descriptor.
// It applies every mutation in declaration order inside one transaction and
// publishes the events once the transaction has committed.
type Materializer struct {
	runner  db.TxRunner
	applier Applier
	bus     Publisher
	log     zerolog.Logger
}

func NewMaterializer(runner db.TxRunner, applier Applier, bus Publisher, log zerolog.Logger) *Materializer {
	return &Materializer{runner: runner, applier: applier, bus: bus, log: log}
}

// Materialize applies the descriptor. An empty descriptor is a no-op. If any
// mutation fails, the transaction rolls back, no event is published, and the
// error propagates to the caller unchanged.
func (m *Materializer) Materialize(ctx context.Context, d Descriptor) error {
	if d.Empty() {
		return nil
	}

	err := m.runner.InTx(ctx, func(ctx context.Context) error {
		for _, mut := range d.Mutations() {
			if err := m.applier.Apply(ctx, mut); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range d.Events() {
		if err := m.bus.Publish(ctx, ev); err != nil {
			// Mutations are already committed; a publish failure must not
			// undo them. Surface it in the logs and keep going.
			m.log.Error().Err(err).Str("event", ev.EventName()).Msg("publish event")
		}
	}
	return nil
}

// MaterializeAll applies several descriptors as one atomic unit.
func (m *Materializer) MaterializeAll(ctx context.Context, ds ...Descriptor) error {
	combined := Descriptor{}
	for _, d := range ds {
		combined = combined.Append(d)
	}
	return m.Materialize(ctx, combined)
}
