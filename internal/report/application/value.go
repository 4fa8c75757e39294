package application

import (
	"encoding/json"
	"math"
)

// Value is a report number where NaN means "not known" and is written as null.
type Value float64

// Missing is the Value of an absent measurement.
func Missing() Value { return Value(math.NaN()) }

// Valid reports whether v is a finite number.
func (v Value) Valid() bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float returns v as float64.
func (v Value) Float() float64 { return float64(v) }

// MarshalJSON writes NaN and infinities as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

// UnmarshalJSON reads null as NaN.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

func valueOf(f float64, ok bool) Value {
	if !ok {
		return Missing()
	}
	return Value(f)
}

func ratio(numerator, denominator float64) Value {
	if denominator == 0 {
		return Missing()
	}
	return Value(numerator / denominator)
}
