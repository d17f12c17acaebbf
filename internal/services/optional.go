package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

// OptionalID distinguishes an absent JSON field from an explicit clear.
// Null and the empty string both clear the reference.
type OptionalID struct {
	Set bool
	ID  *uuid.UUID
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.ID = nil
	if string(data) == "null" {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected an id string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	o.ID = &id
	return nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.ID == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.ID.String())
}

func SetID(id uuid.UUID) OptionalID {
	return OptionalID{Set: true, ID: &id}
}

func ClearID() OptionalID {
	return OptionalID{Set: true}
}
