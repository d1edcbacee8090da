package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

var ErrInvalidJSON = errors.New("invalid json")

// Parse decodes a JSON document, preserving object key order.
func Parse(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Value{}, fmt.Errorf("%w: empty input", ErrInvalidJSON)
	}
	// jsonparser is lenient with truncated input, so check well-formedness first.
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidJSON, truncate(data, 64))
	}
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return fromRaw(raw, dataType)
}

// ParseString is Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

func fromRaw(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return Null(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case jsonparser.Number:
		return NumberText(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case jsonparser.Array:
		items := []Value{}
		var itemErr error
		_, err := jsonparser.ArrayEach(raw, func(item []byte, itemType jsonparser.ValueType, _ int, err error) {
			if itemErr != nil {
				return
			}
			if err != nil {
				itemErr = err
				return
			}
			v, err := fromRaw(item, itemType)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, v)
		})
		if err != nil {
			return Value{}, err
		}
		if itemErr != nil {
			return Value{}, itemErr
		}
		return List(items...), nil
	case jsonparser.Object:
		m := NewMap()
		err := jsonparser.ObjectEach(raw, func(key []byte, item []byte, itemType jsonparser.ValueType, _ int) error {
			k, err := jsonparser.ParseString(key)
			if err != nil {
				return err
			}
			v, err := fromRaw(item, itemType)
			if err != nil {
				return err
			}
			m.Set(k, v)
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return Object(m), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %s", ErrInvalidJSON, dataType)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
