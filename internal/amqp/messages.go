package amqp

import (
	"encoding/json"
	"time"
)

// PlanChangedMessage signals that the plan for an account changed and any
// derived projection should be recomputed. It carries only the account ID,
// the worker fetches the current state from the database.
type PlanChangedMessage struct {
	AccountID int64     `json:"accountId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPlanChangedMessage(accountID int64) *PlanChangedMessage {
	return &PlanChangedMessage{
		AccountID: accountID,
		Timestamp: time.Now(),
	}
}

func (m *PlanChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PlanChangedMessageFromJSON(data []byte) (*PlanChangedMessage, error) {
	var msg PlanChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
