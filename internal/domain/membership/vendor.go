package membership

import (
	"context"
	"strings"
)

// activeLikeVendorStatuses is the allow-list of vendor-side subscription
// states under which an existing external billing subscription can simply
// be re-linked to the renewed period.
var activeLikeVendorStatuses = map[string]bool{
	"trialing": true,
	"active":   true,
	"past_due": true,
}

// VendorStatusActiveLike reports whether the vendor-reported status allows
// re-linking. The comparison is case-insensitive.
func VendorStatusActiveLike(status string) bool {
	return activeLikeVendorStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// VendorStatusLookup resolves the state of an external billing-vendor
// subscription. Used only when renewing a subscription that carries an
// integration link.
type VendorStatusLookup interface {
	Status(ctx context.Context, vendor, ref string) (string, error)
}
