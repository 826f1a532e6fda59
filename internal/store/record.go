package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordOf converts a JSON-tagged value into a record. Numbers stay exact.
func RecordOf(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Decode fills out from the record's fields.
func (r Record) Decode(out any) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ID returns the coerced record identifier.
func (r Record) ID() string {
	return cellString(r[idColumn])
}
