package models

import (
	"bytes"
	"encoding/json"
)

// SourceList is a membership list in the source registry.
//
// ParentID is empty for top-level lists, which are the only ones synchronized.
type SourceList struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// TopLevel reports whether the list has no parent.
func (l SourceList) TopLevel() bool { return l.ParentID == "" }

// SourceMember is a decoded member record.
type SourceMember struct {
	Email     string
	FirstName string
	LastName  string
	Tutors    []SecondaryRecord
}

// SecondaryRecord is a guardian attached to a member, with a single combined display name.
type SecondaryRecord struct {
	Email    string
	FullName string
}

// DecodeSourceMember decodes one raw member record.
//
// ok is false when raw is not a JSON object. Tutor entries that are not objects are dropped
// and counted in skipped, as is a tutors field that is not an array.
// Fields of the wrong type decode as empty strings.
func DecodeSourceMember(raw json.RawMessage) (m SourceMember, skipped int, ok bool) {
	fields, ok := decodeObject(raw)
	if !ok {
		return SourceMember{}, 0, false
	}

	m = SourceMember{
		Email:     stringField(fields, "email"),
		FirstName: stringField(fields, "firstName"),
		LastName:  stringField(fields, "lastName"),
	}

	rawTutors, present := fields["tutors"]
	if !present || isNull(rawTutors) {
		return m, 0, true
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawTutors, &entries); err != nil {
		return m, 1, true
	}

	for _, entry := range entries {
		tf, ok := decodeObject(entry)
		if !ok {
			skipped++
			continue
		}
		m.Tutors = append(m.Tutors, SecondaryRecord{
			Email:    stringField(tf, "email"),
			FullName: stringField(tf, "fullName"),
		})
	}
	return m, skipped, true
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
