package dispatch

import "github.com/ignite/promo-dispatch/internal/domain"

// Aggregate folds outcomes into a summary. TotalRecipients is the requested
// count before deduplication so callers can reconcile requested, attempted
// and succeeded figures. Template, subject and content are left for the
// caller to fill in.
func Aggregate(res Resolution, outcomes []domain.SendOutcome) domain.CampaignSummary {
	s := domain.CampaignSummary{
		TotalRecipients: res.Requested,
		DuplicateCount:  res.Duplicates(),
		Outcomes:        outcomes,
	}
	if s.Outcomes == nil {
		s.Outcomes = []domain.SendOutcome{}
	}
	for _, o := range outcomes {
		switch {
		case !o.Attempted():
			s.NotAttempted++
		case o.Success:
			s.SuccessCount++
		default:
			s.FailureCount++
		}
	}
	s.AttemptedCount = s.SuccessCount + s.FailureCount
	return s
}
