package retroachievements

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/victornm/raboard/internal/domain"
)

// Payload is the part of the API_GetGameInfoAndUserProgress response used to build a leaderboard.
type Payload struct {
	Title        string       `json:"Title"`
	ImageIcon    string       `json:"ImageIcon"`
	Achievements Achievements `json:"Achievements"`
}

func (p *Payload) GameInfo() domain.GameInfo {
	return domain.GameInfo{
		Title:     p.Title,
		ImageIcon: p.ImageIcon,
	}
}

// Achievement is one achievement of the game with the moment the target user earned it, if any.
// DateEarned is kept raw: the API sends strings, numbers or null depending on the endpoint version.
type Achievement struct {
	ID         string
	DateEarned json.RawMessage
}

// Achievements maps an achievement ID to the achievement.
type Achievements map[string]Achievement

// UnmarshalJSON accepts an object, null, or an empty array (sent by the API when a game has no achievements).
// Individual records that are not objects are kept with an empty DateEarned.
func (a *Achievements) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case bytes.Equal(b, []byte("null")):
		*a = Achievements{}
		return nil

	case len(b) > 0 && b[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			return fmt.Errorf("achievements: unexpected non-empty array")
		}
		*a = Achievements{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("achievements: %w", err)
	}

	m := make(Achievements, len(raw))
	for id, r := range raw {
		var rec struct {
			DateEarned json.RawMessage `json:"DateEarned"`
		}
		// A malformed record counts as not earned.
		_ = json.Unmarshal(r, &rec)

		m[id] = Achievement{
			ID:         id,
			DateEarned: rec.DateEarned,
		}
	}

	*a = m
	return nil
}

// DecodePayload decodes a response body. A body that is not a JSON object is a PermanentError.
func DecodePayload(b []byte) (*Payload, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, &PermanentError{Err: fmt.Errorf("decode payload: not a JSON object")}
	}

	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("decode payload: %w", err)}
	}

	if p.Achievements == nil {
		p.Achievements = Achievements{}
	}

	return &p, nil
}
