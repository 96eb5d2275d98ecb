package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LedgerUpdatedMessage announces that a ledger was persisted at Version.
// It carries only the key: consumers fetch the ledger itself from the store.
type LedgerUpdatedMessage struct {
	UserID    string    `json:"userId"`
	MonthYear string    `json:"monthYear"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerUpdatedMessage creates a message stamped with the current time
func NewLedgerUpdatedMessage(userID, monthYear string, version int64) *LedgerUpdatedMessage {
	return &LedgerUpdatedMessage{
		UserID:    userID,
		MonthYear: monthYear,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerUpdatedMessageFromJSON decodes and checks a message body
func LedgerUpdatedMessageFromJSON(data []byte) (*LedgerUpdatedMessage, error) {
	var msg LedgerUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.MonthYear == "" {
		return nil, errors.New("ledger updated message: missing userId or monthYear")
	}
	return &msg, nil
}
