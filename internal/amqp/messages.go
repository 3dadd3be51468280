package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Actions carried by a mirror message.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// MirrorMessage asks the worker to reconcile one expense row with the
// mirror sheet. It carries only the id and action; the worker reads the
// current row from the store.
type MirrorMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMirrorMessage builds a message for the given expense and action.
func NewMirrorMessage(id int64, action string) *MirrorMessage {
	return &MirrorMessage{ID: id, Action: action, Timestamp: time.Now()}
}

func (m *MirrorMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid expense id %d", m.ID)
	}
	if m.Action != ActionUpsert && m.Action != ActionDelete {
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}

func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
