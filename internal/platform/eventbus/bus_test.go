package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/careward/careward/internal/effect"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestPublishDispatchesByName(t *testing.T) {
	bus := New(zerolog.Nop())

	var got []string
	bus.Subscribe("a.happened", func(_ context.Context, ev effect.Event) error {
		got = append(got, "a:"+ev.EventName())
		return nil
	})
	bus.Subscribe("b.happened", func(_ context.Context, ev effect.Event) error {
		got = append(got, "b:"+ev.EventName())
		return nil
	})

	if err := bus.Publish(context.Background(), testEvent{name: "a.happened"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "a:a.happened" {
		t.Errorf("unexpected dispatch: %v", got)
	}
}

func TestPublishWildcard(t *testing.T) {
	bus := New(zerolog.Nop())

	var count int
	bus.Subscribe("*", func(_ context.Context, _ effect.Event) error {
		count++
		return nil
	})

	_ = bus.Publish(context.Background(), testEvent{name: "a.happened"})
	_ = bus.Publish(context.Background(), testEvent{name: "b.happened"})

	if count != 2 {
		t.Errorf("wildcard handler should see every event, got %d", count)
	}
}

func TestPublishHandlerOrder(t *testing.T) {
	bus := New(zerolog.Nop())

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe("a.happened", func(_ context.Context, _ effect.Event) error {
			got = append(got, i)
			return nil
		})
	}

	_ = bus.Publish(context.Background(), testEvent{name: "a.happened"})

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("handlers ran out of registration order: %v", got)
	}
}

func TestPublishHandlerErrorDoesNotPropagate(t *testing.T) {
	bus := New(zerolog.Nop())

	var secondRan bool
	bus.Subscribe("a.happened", func(_ context.Context, _ effect.Event) error {
		return errors.New("consumer broken")
	})
	bus.Subscribe("a.happened", func(_ context.Context, _ effect.Event) error {
		secondRan = true
		return nil
	})

	if err := bus.Publish(context.Background(), testEvent{name: "a.happened"}); err != nil {
		t.Fatalf("handler error must not propagate: %v", err)
	}
	if !secondRan {
		t.Error("a failing handler must not stop later handlers")
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := New(zerolog.Nop())
	bus.Close()

	if err := bus.Publish(context.Background(), testEvent{name: "a.happened"}); err == nil {
		t.Error("publish on a closed bus must fail")
	}
}
