package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

type valueKind uint8

const (
	kindNone valueKind = iota
	kindBool
	kindInt
)

// Value is the override payload: a bool for feature overrides, an int64 for
// limit overrides. It is stored as a JSON literal ("true", "250", "-1").
type Value struct {
	kind valueKind
	b    bool
	i    int64
}

func BoolValue(v bool) Value { return Value{kind: kindBool, b: v} }

func IntValue(v int64) Value { return Value{kind: kindInt, i: v} }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == kindBool }

func (v Value) Int() (int64, bool) { return v.i, v.kind == kindInt }

func (v Value) IsZero() bool { return v.kind == kindNone }

func (v Value) String() string {
	switch v.kind {
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "":
		*v = Value{}
		return nil
	case "true":
		*v = BoolValue(true)
		return nil
	case "false":
		*v = BoolValue(false)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, data)
	}
	i, err := n.Int64()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, data)
	}
	*v = IntValue(i)
	return nil
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) {
	if v.kind == kindNone {
		return nil, nil
	}
	return v.String(), nil
}

// Scan implements sql.Scanner.
func (v *Value) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		*v = Value{}
		return nil
	case []byte:
		return v.UnmarshalJSON(s)
	case string:
		return v.UnmarshalJSON([]byte(s))
	case bool:
		*v = BoolValue(s)
		return nil
	case int64:
		*v = IntValue(s)
		return nil
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidValue, src)
	}
}
