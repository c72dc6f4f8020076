package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"boletim/internal/core"
)

// DaySyncMessage asks the worker to export a day. It carries only the date
// and version; the worker reads the figures from the database.
type DaySyncMessage struct {
	Date      core.Date `json:"date"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDaySyncMessage(date core.Date, version int64) *DaySyncMessage {
	return &DaySyncMessage{
		Date:      date,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *DaySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DaySyncMessageFromJSON(data []byte) (*DaySyncMessage, error) {
	var msg DaySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Date.Validate(); err != nil {
		return nil, fmt.Errorf("day sync message: %w", err)
	}
	return &msg, nil
}
