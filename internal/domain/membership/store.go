package membership

import (
	"context"
	"fmt"

	"github.com/careward/careward/internal/effect"
)

// Store maps effect mutations onto the membership repositories. It is the
// applier the materializer runs inside its transaction; repositories pick
// the transaction up from the context.
type Store struct {
	subs     SubscriptionRepository
	issues   PaymentIssueRepository
	timeline TimelineRepository
}

func NewStore(subs SubscriptionRepository, issues PaymentIssueRepository, timeline TimelineRepository) *Store {
	return &Store{subs: subs, issues: issues, timeline: timeline}
}

func (s *Store) Apply(ctx context.Context, m effect.Mutation) error {
	switch e := m.Entity.(type) {
	case *Subscription:
		switch m.Op {
		case effect.OpAdd:
			return s.subs.Create(ctx, e)
		case effect.OpUpdate:
			return s.subs.Update(ctx, e)
		}
	case *PaymentIssue:
		if m.Op == effect.OpUpdate {
			return s.issues.Update(ctx, e)
		}
	case *TimelineEvent:
		if m.Op == effect.OpAdd {
			return s.timeline.Create(ctx, e)
		}
	}
	return fmt.Errorf("unsupported mutation %s on %s", m.Op, m.Entity.EntityKind())
}
