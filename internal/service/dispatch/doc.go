// Package dispatch implements the promotional send workflow.
//
// A send request is validated and rendered against its template, its
// recipient selection is resolved to a deduplicated address list, and the
// rendered message is delivered to each address through a sending.Sender.
// Every attempted recipient gets a tracking update in the subscriber store,
// and the per-recipient outcomes are folded into a domain.CampaignSummary.
//
// One recipient's transport or tracking failure never aborts the batch.
// Store implementations live in repository/postgres/ and repository/memory/.
package dispatch
