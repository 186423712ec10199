package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleField can hold either a string or a number, e.g. tar1090's alt_baro
// which is a number in flight and "ground" on the ground.
type FlexibleField struct {
	value any
}

// UnmarshalJSON accepts a number, string or boolean
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		f.value = nil
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Float64 returns the value as a float64. "ground" reads as 0; ok is false
// when the field was absent, null or not a number.
func (f FlexibleField) Float64() (float64, bool) {
	switch v := f.value.(type) {
	case float64:
		return v, true
	case string:
		if v == "ground" {
			return 0, true
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IsGround reports whether the field carries the "ground" marker
func (f FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && s == "ground"
}
