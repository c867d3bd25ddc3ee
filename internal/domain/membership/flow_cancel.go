package membership

import (
	"time"

	"github.com/careward/careward/internal/effect"
)

// CancelInput carries the subscription to cancel and its linked open
// payment issues.
type CancelInput struct {
	Subscription *Subscription
	Reason       CancellationReason
	ReasonText   string
	OpenIssues   []*PaymentIssue
	Now          time.Time
}

// Cancel records a terminal cancellation. It is idempotent: cancelling an
// already-cancelled subscription returns an empty descriptor. Linked open
// subscription-type payment issues are cancelled in the same unit. The
// user-visible cancellation event and timeline entry are suppressed for the
// internal renewed/replaced transitions.
func Cancel(in CancelInput) (effect.Descriptor, error) {
	sub := in.Subscription
	if sub.Cancelled() {
		return effect.Descriptor{}, nil
	}

	after := sub.clone()
	after.Cancellation = &CancellationRequest{
		Date:       in.Now,
		ReasonType: in.Reason,
		ReasonText: in.ReasonText,
	}
	after.UpdatedAt = in.Now

	d := effect.Update(after)
	d = d.Append(cancelOpenIssues(in.OpenIssues, in.Now))

	if !in.Reason.internal() {
		d = d.Append(
			timelineEntry(sub.PatientID, TimelineSubscriptionCancelled, in.Now, map[string]interface{}{
				"subscription_id": sub.ID.String(),
				"reason":          string(in.Reason),
			}),
			effect.Emit(SubscriptionCancelledEvent{
				SubscriptionID: sub.ID,
				PatientID:      sub.PatientID,
				Reason:         in.Reason,
				ReasonText:     in.ReasonText,
				CancelledAt:    in.Now,
			}),
		)
	}
	return d, nil
}

// cancelOpenIssues produces update mutations cancelling every open
// subscription-type payment issue.
func cancelOpenIssues(issues []*PaymentIssue, now time.Time) effect.Descriptor {
	d := effect.Descriptor{}
	for _, issue := range issues {
		if issue.Status != PaymentIssueOpen || issue.Type != PaymentIssueSubscription {
			continue
		}
		closed := *issue
		closed.Status = PaymentIssueCancelled
		closed.UpdatedAt = now
		d = d.Append(effect.Update(&closed))
	}
	return d
}
