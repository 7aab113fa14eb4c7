package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"importdesk/internal/core"
)

// ImportConfirmedMessage announces that a staged import was committed.
type ImportConfirmedMessage struct {
	Message   string          `json:"message"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewImportConfirmedMessage(result core.ConfirmResult) *ImportConfirmedMessage {
	return &ImportConfirmedMessage{
		Message:   result.Message,
		Count:     result.Count,
		Total:     result.Total.Decimal(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *ImportConfirmedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportConfirmedMessageFromJSON(data []byte) (*ImportConfirmedMessage, error) {
	var msg ImportConfirmedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
