package config

import (
	"encoding/json"
	"fmt"

	"github.com/LucaPlaster/MyGeoEyes/pkg/utils"
)

// DataSize is a byte count that reads either a number or a human-friendly
// string such as "64MB" from JSON.
type DataSize int64

func (s DataSize) Int() int {
	return int(s)
}

func (s DataSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(s))
}

func (s *DataSize) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		if value < 0 {
			return fmt.Errorf("negative size: %v", value)
		}
		*s = DataSize(value)
	case string:
		parsed, err := utils.ParseDataSize(value)
		if err != nil {
			return fmt.Errorf("invalid size format: %w", err)
		}
		*s = DataSize(parsed)
	case nil:
		*s = 0
	default:
		return fmt.Errorf("size must be a number or string, got %T", v)
	}
	return nil
}
