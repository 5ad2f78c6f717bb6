package types

import (
	"encoding/json"
	"errors"
)

// NotePatch is the body of PATCH /notes/{id}. A JSON null title clears it, an absent
// field leaves the column alone.
type NotePatch struct {
	Title      *string
	ClearTitle bool
	Content    *string
	Summary    *string
}

func (p NotePatch) Empty() bool {
	return p.Title == nil && !p.ClearTitle && p.Content == nil && p.Summary == nil
}

func (p NotePatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	switch {
	case p.ClearTitle:
		out["title"] = nil
	case p.Title != nil:
		out["title"] = *p.Title
	}
	if p.Content != nil {
		out["content"] = *p.Content
	}
	if p.Summary != nil {
		out["summary"] = *p.Summary
	}
	return json.Marshal(out)
}

func (p *NotePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NotePatch{}
	if v, ok := raw["title"]; ok {
		if string(v) == "null" {
			p.ClearTitle = true
		} else if err := json.Unmarshal(v, &p.Title); err != nil {
			return errors.New("title must be a string or null")
		}
	}
	if v, ok := raw["content"]; ok {
		if string(v) == "null" {
			return errors.New("content cannot be null")
		}
		if err := json.Unmarshal(v, &p.Content); err != nil {
			return errors.New("content must be a string")
		}
	}
	if v, ok := raw["summary"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &p.Summary); err != nil {
			return errors.New("summary must be a string")
		}
	}
	return nil
}
