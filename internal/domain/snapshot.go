package domain

import (
	"encoding/json"
	"fmt"
)

// SnapshotKey is the key-value store key for a session.
func SnapshotKey(sessionID string) string {
	return "quiz-" + sessionID
}

// Snapshot is the persisted subset of a session: enough to resume after a reload.
type Snapshot struct {
	Step     int               `json:"step"`
	Answers  map[ID]Answer     `json:"answers"`
	LeadData map[string]string `json:"leadData"`
}

// EncodeSnapshot renders the stored JSON blob.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s.Answers == nil {
		s.Answers = map[ID]Answer{}
	}
	if s.LeadData == nil {
		s.LeadData = map[string]string{}
	}
	return json.Marshal(s)
}

// DecodeSnapshot parses a stored blob against the quiz it belongs to. Answers for
// questions that are not configured are dropped.
func DecodeSnapshot(data []byte, quiz Quiz) (Snapshot, error) {
	var wire struct {
		Step     *int                   `json:"step"`
		Answers  map[ID]json.RawMessage `json:"answers"`
		LeadData map[string]string      `json:"leadData"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if wire.Step == nil || *wire.Step < 0 {
		return Snapshot{}, fmt.Errorf("%w: missing or negative step", ErrMalformedSnapshot)
	}
	answers, err := DecodeAnswers(quiz, wire.Answers)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	lead := wire.LeadData
	if lead == nil {
		lead = map[string]string{}
	}
	return Snapshot{Step: *wire.Step, Answers: answers, LeadData: lead}, nil
}
