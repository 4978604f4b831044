package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList represents a PostgreSQL JSONB array of strings.
type StringList []string

// Value implements the driver.Valuer interface for StringList
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for StringList
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringList", value)
	}

	return json.Unmarshal(bytes, l)
}

// ProjectStatus constants for project lifecycle
const (
	ProjectStatusActive    = "active"
	ProjectStatusComplete  = "complete"
	ProjectStatusCancelled = "cancelled"
)
