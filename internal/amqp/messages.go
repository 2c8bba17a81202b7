package amqp

import (
	"encoding/json"
	"time"
)

// Message type identifiers carried in the AMQP Type property so a consumer
// can dispatch without inspecting the body.
const (
	TypeEntrySync   = "entry.sync"
	TypeEntryDelete = "entry.delete"
	TypeReminder    = "reminder"
)

// EntrySyncMessage asks the worker to mirror one intake entry to the backup
// sheet. Only the ID travels; the worker fetches the entry from the store.
type EntrySyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntrySyncMessage creates a sync message for one entry ID
func NewEntrySyncMessage(id int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON creates a message from JSON bytes
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EntryDeleteMessage carries the fields of a removed entry. The row is gone
// from the store by the time the worker sees this, so everything needed to
// find it in the sheet travels with the message.
type EntryDeleteMessage struct {
	ID        int64     `json:"id"`
	AmountML  int       `json:"amount_ml"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryDeleteMessage creates a delete message for a removed entry
func NewEntryDeleteMessage(id int64, amountML int, date string) *EntryDeleteMessage {
	return &EntryDeleteMessage{
		ID:        id,
		AmountML:  amountML,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryDeleteMessageFromJSON creates a message from JSON bytes
func EntryDeleteMessageFromJSON(data []byte) (*EntryDeleteMessage, error) {
	var msg EntryDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage is the outbound hydration nudge for the shell's
// notification layer. It carries today's progress so the shell can render
// without a follow-up query.
type ReminderMessage struct {
	GoalML     int       `json:"goal_ml"`
	TotalML    int       `json:"total_ml"`
	Percentage float64   `json:"percentage"`
	Sound      bool      `json:"sound"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
