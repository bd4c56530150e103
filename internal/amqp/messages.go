package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// BillSyncMessage asks the worker to push a bill to Google Sheets. It only
// carries the ID and version; the worker reads the bill from the database.
type BillSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBillSyncMessage(id string, version int64) *BillSyncMessage {
	return &BillSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *BillSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BillSyncMessageFromJSON decodes and checks a message body.
func BillSyncMessageFromJSON(data []byte) (*BillSyncMessage, error) {
	var msg BillSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("bill sync message without id")
	}
	return &msg, nil
}
