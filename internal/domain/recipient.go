package domain

// SelectionMode identifies how a dispatch request chooses its recipients.
type SelectionMode string

const (
	SelectionSelected SelectionMode = "selected"
	SelectionCustom   SelectionMode = "custom"
)

// RecipientSelection is a tagged variant: Mode selects which of IDs or
// RawList is meaningful.
type RecipientSelection struct {
	Mode    SelectionMode `json:"mode"`
	IDs     []string      `json:"ids,omitempty"`
	RawList string        `json:"raw_list,omitempty"`
}

// Selected builds a selection of known subscriber ids.
func Selected(ids ...string) RecipientSelection {
	return RecipientSelection{Mode: SelectionSelected, IDs: ids}
}

// Custom builds a selection from a free-text comma separated address list.
func Custom(rawList string) RecipientSelection {
	return RecipientSelection{Mode: SelectionCustom, RawList: rawList}
}

// SubscriberRef is the projection returned by a subscriber id lookup.
type SubscriberRef struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
}
