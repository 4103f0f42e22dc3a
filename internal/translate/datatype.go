package translate

import (
	"encoding/json"
	"fmt"

	"github.com/JoobyPM/flagport/internal/target"
)

type valueKind int

const (
	kindInvalid valueKind = iota
	kindString
	kindNumber
	kindBoolean
	kindJSON
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case string:
		return kindString
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return kindNumber
	case bool:
		return kindBoolean
	case map[string]any, []any:
		return kindJSON
	default:
		return kindInvalid
	}
}

// commonKind returns the kind shared by every value. Empty input is a string.
func commonKind(values []any) (valueKind, error) {
	kind := kindString
	for i, v := range values {
		k := kindOf(v)
		if k == kindInvalid {
			return kindInvalid, fmt.Errorf("%w: %T", ErrUnsupportedDataType, v)
		}
		if i == 0 {
			kind = k
			continue
		}
		if k != kind {
			return kindInvalid, fmt.Errorf("%w: %v", ErrMixedDataTypes, values)
		}
	}
	return kind, nil
}

// InferDataType returns the custom data key type of clause values.
func InferDataType(values []any) (string, error) {
	kind, err := commonKind(values)
	if err != nil {
		return "", err
	}
	switch kind {
	case kindNumber:
		return target.DataKeyTypeNumber, nil
	case kindBoolean:
		return target.DataKeyTypeBoolean, nil
	case kindString:
		return target.DataKeyTypeString, nil
	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedDataType, values)
	}
}

// InferVariableType returns the variable type of a feature's variation values.
func InferVariableType(values []any) (string, error) {
	kind, err := commonKind(values)
	if err != nil {
		return "", err
	}
	switch kind {
	case kindNumber:
		return target.VariableTypeNumber, nil
	case kindBoolean:
		return target.VariableTypeBoolean, nil
	case kindJSON:
		return target.VariableTypeJSON, nil
	default:
		return target.VariableTypeString, nil
	}
}
