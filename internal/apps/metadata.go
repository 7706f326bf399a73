package apps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMetadata = errors.New("apps: malformed metadata")

// Metadata is an app's metadata document. Fields other than name are kept
// verbatim in Extra so newer bundle formats survive a round trip.
type Metadata struct {
	Name  string
	Extra map[string]json.RawMessage
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(m.Extra)+1)
	for k, v := range m.Extra {
		obj[k] = v
	}
	if m.Name != "" {
		name, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		obj["name"] = name
	}
	return json.Marshal(obj)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrMetadata)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	*m = Metadata{}
	if raw, ok := obj["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			m.Name = name
			delete(obj, "name")
		}
	}
	if len(obj) > 0 {
		m.Extra = obj
	}
	return nil
}

// Label returns Name, falling back to a string "title" or "id" field.
// Empty when none is set.
func (m Metadata) Label() string {
	if m.Name != "" {
		return m.Name
	}
	for _, key := range []string{"title", "id"} {
		var v string
		if json.Unmarshal(m.Extra[key], &v) == nil && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseMetadata decodes a bundle's metadata.json.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		if errors.Is(err, ErrMetadata) {
			return Metadata{}, err
		}
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	return m, nil
}
