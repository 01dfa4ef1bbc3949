package amqp

import (
	"encoding/json"
	"time"
)

// Mutation kinds carried on the bus.
const (
	KindEntryUpserted  = "entry_upserted"
	KindEntryDeleted   = "entry_deleted"
	KindAdvanceSet     = "advance_set"
	KindDeductionAdded = "deduction_added"
	KindProfileUpdated = "profile_updated"
	KindUserDeleted    = "user_deleted"
	KindScopeReset     = "scope_reset"
)

// MutationEvent announces that a ledger window changed. Subscribers use it
// to invalidate cached summaries or re-export the affected month instead
// of polling; the payload carries the window key, never the record itself.
type MutationEvent struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"userId,omitempty"`
	YearMonth string    `json:"yearMonth,omitempty"`
	EntryID   string    `json:"entryId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationEvent stamps an event with the current time.
func NewMutationEvent(kind, userID, yearMonth string) MutationEvent {
	return MutationEvent{
		Kind:      kind,
		UserID:    userID,
		YearMonth: yearMonth,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes.
func (m MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationEventFromJSON decodes an event from JSON bytes.
func MutationEventFromJSON(data []byte) (MutationEvent, error) {
	var m MutationEvent
	if err := json.Unmarshal(data, &m); err != nil {
		return MutationEvent{}, err
	}
	return m, nil
}
