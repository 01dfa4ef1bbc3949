package amqp

import (
	"testing"
	"time"
)

func TestNewMutationEvent(t *testing.T) {
	event := NewMutationEvent(KindEntryUpserted, "u1", "2025-06")

	if event.Kind != KindEntryUpserted {
		t.Errorf("Kind = %v, want %v", event.Kind, KindEntryUpserted)
	}
	if event.UserID != "u1" || event.YearMonth != "2025-06" {
		t.Errorf("unexpected window key: %s %s", event.UserID, event.YearMonth)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestMutationEvent_JSON(t *testing.T) {
	timestamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := MutationEvent{
		Kind:      KindAdvanceSet,
		UserID:    "u1",
		YearMonth: "2025-06",
		Timestamp: timestamp,
	}

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := MutationEventFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("MutationEventFromJSON() error = %v", err)
	}

	if parsed.Kind != event.Kind || parsed.UserID != event.UserID || parsed.YearMonth != event.YearMonth {
		t.Errorf("parsed event %+v does not match original %+v", parsed, event)
	}
	if !parsed.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, event.Timestamp)
	}
}

func TestMutationEvent_InvalidJSON(t *testing.T) {
	if _, err := MutationEventFromJSON([]byte(`{"kind": 42`)); err == nil {
		t.Error("MutationEventFromJSON() should fail with invalid JSON")
	}
}
