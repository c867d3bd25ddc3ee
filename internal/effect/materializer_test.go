package effect

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRunner runs the function directly; it records whether a transaction
// was started and whether it rolled back.
type fakeRunner struct {
	started    int
	rolledBack bool
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.started++
	if err := fn(ctx); err != nil {
		r.rolledBack = true
		return err
	}
	return nil
}

type recordingApplier struct {
	applied []Mutation
	failOn  string
}

func (a *recordingApplier) Apply(_ context.Context, m Mutation) error {
	if a.failOn != "" && m.Entity.EntityKind() == a.failOn {
		return errors.New("apply failed")
	}
	a.applied = append(a.applied, m)
	return nil
}

type recordingBus struct {
	published []Event
	err       error
}

func (b *recordingBus) Publish(_ context.Context, ev Event) error {
	b.published = append(b.published, ev)
	return b.err
}

func newTestMaterializer() (*Materializer, *fakeRunner, *recordingApplier, *recordingBus) {
	runner := &fakeRunner{}
	applier := &recordingApplier{}
	bus := &recordingBus{}
	return NewMaterializer(runner, applier, bus, zerolog.Nop()), runner, applier, bus
}

func TestMaterializeEmpty(t *testing.T) {
	mat, runner, _, bus := newTestMaterializer()

	if err := mat.Materialize(context.Background(), Descriptor{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.started != 0 {
		t.Error("empty descriptor must not open a transaction")
	}
	if len(bus.published) != 0 {
		t.Error("empty descriptor must not publish events")
	}
}

func TestMaterializeAppliesInOrder(t *testing.T) {
	mat, runner, applier, bus := newTestMaterializer()

	d := Add(&testEntity{kind: "a"}).
		Append(Update(&testEntity{kind: "b"}), Emit(testEvent{name: "a.done"}))

	if err := mat.Materialize(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.started != 1 {
		t.Errorf("expected 1 transaction, got %d", runner.started)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("expected 2 applied mutations, got %d", len(applier.applied))
	}
	if applier.applied[0].Entity.EntityKind() != "a" || applier.applied[1].Entity.EntityKind() != "b" {
		t.Error("mutations applied out of order")
	}
	if len(bus.published) != 1 || bus.published[0].EventName() != "a.done" {
		t.Errorf("unexpected published events: %v", bus.published)
	}
}

func TestMaterializeFailureSkipsEvents(t *testing.T) {
	mat, runner, applier, bus := newTestMaterializer()
	applier.failOn = "b"

	d := Add(&testEntity{kind: "a"}).
		Append(Update(&testEntity{kind: "b"}), Emit(testEvent{name: "a.done"}))

	err := mat.Materialize(context.Background(), d)
	if err == nil {
		t.Fatal("expected error from failing mutation")
	}
	if !runner.rolledBack {
		t.Error("failed mutation must roll the transaction back")
	}
	if len(bus.published) != 0 {
		t.Error("no event may be published when the transaction fails")
	}
}

func TestMaterializePublishFailureDoesNotFail(t *testing.T) {
	mat, _, applier, bus := newTestMaterializer()
	bus.err = errors.New("broker down")

	d := Add(&testEntity{kind: "a"}).Append(Emit(testEvent{name: "a.done"}))

	if err := mat.Materialize(context.Background(), d); err != nil {
		t.Fatalf("publish failure must not fail materialization: %v", err)
	}
	if len(applier.applied) != 1 {
		t.Error("mutation should have been applied")
	}
}

func TestMaterializeAllIsOneTransaction(t *testing.T) {
	mat, runner, applier, _ := newTestMaterializer()

	a := Add(&testEntity{kind: "a"})
	b := Update(&testEntity{kind: "b"})

	if err := mat.MaterializeAll(context.Background(), a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.started != 1 {
		t.Errorf("expected 1 transaction for combined descriptors, got %d", runner.started)
	}
	if len(applier.applied) != 2 {
		t.Errorf("expected 2 applied mutations, got %d", len(applier.applied))
	}
}
