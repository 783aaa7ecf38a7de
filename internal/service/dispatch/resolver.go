package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/promo-dispatch/internal/domain"
)

// Resolution is the concrete recipient list for one dispatch.
type Resolution struct {
	// Recipients is unique under case-insensitive comparison. The first
	// spelling of an address wins and input order is kept.
	Recipients []string
	// Requested counts addresses before deduplication.
	Requested int
}

// Duplicates is the number of addresses dropped by deduplication.
func (r Resolution) Duplicates() int {
	return r.Requested - len(r.Recipients)
}

// Resolve turns sel into an ordered, deduplicated address list. Addresses are
// not syntax-checked here; a bad address surfaces as a failed outcome from
// the transport. An empty result is ErrEmptyRecipients.
func Resolve(ctx context.Context, sel domain.RecipientSelection, lookup SubscriberLookup) (Resolution, error) {
	var addrs []string

	switch sel.Mode {
	case domain.SelectionSelected:
		ids := compact(sel.IDs)
		if len(ids) == 0 {
			return Resolution{}, ErrNoIDsProvided
		}
		refs, err := lookup.LookupByIDs(ctx, ids)
		if err != nil {
			return Resolution{}, fmt.Errorf("lookup subscribers: %w", err)
		}
		for _, ref := range refs {
			if email := strings.TrimSpace(ref.Email); email != "" {
				addrs = append(addrs, email)
			}
		}

	case domain.SelectionCustom:
		if strings.TrimSpace(sel.RawList) == "" {
			return Resolution{}, ErrNoListProvided
		}
		addrs = compact(strings.Split(sel.RawList, ","))

	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidSelection, sel.Mode)
	}

	res := Resolution{Requested: len(addrs), Recipients: dedupe(addrs)}
	if len(res.Recipients) == 0 {
		return Resolution{}, ErrEmptyRecipients
	}
	return res, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		key := strings.ToLower(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
