package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// StringArray is a string list kept in one JSON text column. Mongo hands it
// over as a BSON array, which Scan accepts too.
type StringArray []string

func (a StringArray) Contains(s string) bool {
	return slices.Contains(a, s)
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*a = StringArray{}
	case []byte:
		return a.scanText(string(v))
	case string:
		return a.scanText(v)
	case []string:
		*a = append(StringArray{}, v...)
	case []interface{}:
		out := make(StringArray, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*a = out
	default:
		return fmt.Errorf("models.StringArray: unsupported Scan type %T", value)
	}
	return nil
}

func (a *StringArray) scanText(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*a = StringArray{}
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return fmt.Errorf("models.StringArray: %w", err)
	}
	*a = arr
	return nil
}
