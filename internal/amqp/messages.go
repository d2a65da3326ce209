package amqp

import (
	"encoding/json"
	"time"
)

// RefreshMessage asks the worker to recompute dashboard snapshots.
// BudgetID 0 means every budget of the given year.
type RefreshMessage struct {
	Year      int       `json:"year"`
	BudgetID  int64     `json:"budget_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRefreshMessage(year int, budgetID int64) *RefreshMessage {
	return &RefreshMessage{
		Year:      year,
		BudgetID:  budgetID,
		Timestamp: time.Now(),
	}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
