package translate

import (
	"fmt"
	"strings"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

// Attribute is a Source clause attribute with special handling.
type Attribute int

// Attributes. Any attribute not listed is custom data.
const (
	AttributeCustom Attribute = iota
	AttributeKey
	AttributeEmail
	AttributeCountry
	AttributeIP
	AttributeSegmentMatch
)

// SegmentMatch is the attribute and operator of clauses that reference segments.
const SegmentMatch = "segmentMatch"

// ParseAttribute classifies a clause attribute.
func ParseAttribute(s string) Attribute {
	switch s {
	case "key":
		return AttributeKey
	case "email":
		return AttributeEmail
	case "country":
		return AttributeCountry
	case "ip":
		return AttributeIP
	case SegmentMatch:
		return AttributeSegmentMatch
	default:
		return AttributeCustom
	}
}

// Op is a Source clause operator.
type Op int

// Operators with a built-in Target comparator.
const (
	OpUnsupported Op = iota
	OpIn
	OpContains
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

// ParseOp classifies a clause operator.
func ParseOp(s string) Op {
	switch s {
	case "in":
		return OpIn
	case "contains":
		return OpContains
	case "lessThan":
		return OpLessThan
	case "lessThanOrEqual":
		return OpLessThanOrEqual
	case "greaterThan":
		return OpGreaterThan
	case "greaterThanOrEqual":
		return OpGreaterThanOrEqual
	default:
		return OpUnsupported
	}
}

// Mapper converts Source clauses to Target filter leaves.
type Mapper struct {
	// OperationMap overrides the comparator of a Source operator, e.g.
	// endsWith -> contain. Negated clauses use the negated comparator.
	OperationMap map[string]string
}

// Comparator derives the Target comparator of a Source operator.
func (m Mapper) Comparator(op string, negate bool) (string, error) {
	if comparator, ok := m.OperationMap[op]; ok {
		if negate {
			return Negate(comparator), nil
		}
		return comparator, nil
	}

	switch ParseOp(op) {
	case OpIn:
		return pick(negate, target.ComparatorNotEqual, target.ComparatorEqual), nil
	case OpContains:
		return pick(negate, target.ComparatorNotContain, target.ComparatorContain), nil
	// Ordering comparators have no negated form.
	case OpLessThan:
		return target.ComparatorLess, nil
	case OpLessThanOrEqual:
		return target.ComparatorLessOrEqual, nil
	case OpGreaterThan:
		return target.ComparatorGreater, nil
	case OpGreaterThanOrEqual:
		return target.ComparatorGreaterOrEqual, nil
	case OpUnsupported:
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

// Negate returns the negated form of a comparator. Ordering comparators are
// returned unchanged.
func Negate(comparator string) string {
	switch comparator {
	case target.ComparatorLess, target.ComparatorLessOrEqual,
		target.ComparatorGreater, target.ComparatorGreaterOrEqual:
		return comparator
	}
	if c, ok := strings.CutPrefix(comparator, "!"); ok {
		return c
	}
	if comparator == target.ComparatorEqual {
		return target.ComparatorNotEqual
	}
	return "!" + comparator
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// MapClause converts one clause to a filter leaf. Segment match clauses are
// not handled here since they need the imported audiences.
func (m Mapper) MapClause(c source.Clause) (target.Filter, error) {
	comparator, err := m.Comparator(c.Op, c.Negate)
	if err != nil {
		return target.Filter{}, err
	}

	switch ParseAttribute(c.Attribute) {
	case AttributeKey:
		return UserFilter(target.SubTypeUserID, comparator, c.Values), nil
	case AttributeEmail:
		return UserFilter(target.SubTypeEmail, comparator, c.Values), nil
	case AttributeIP:
		return UserFilter(target.SubTypeIP, comparator, c.Values), nil
	case AttributeCountry:
		values, err := countryValues(c.Values)
		if err != nil {
			return target.Filter{}, err
		}
		return UserFilter(target.SubTypeCountry, comparator, values), nil
	case AttributeSegmentMatch:
		return target.Filter{}, fmt.Errorf("%w: %s", ErrUnsupportedOperator, SegmentMatch)
	case AttributeCustom:
		dataKeyType, err := InferDataType(c.Values)
		if err != nil {
			return target.Filter{}, fmt.Errorf("attribute %s: %w", c.Attribute, err)
		}
		return target.Filter{
			Type:        target.FilterTypeUser,
			SubType:     target.SubTypeCustomData,
			Comparator:  comparator,
			Values:      nonNilValues(c.Values),
			DataKey:     c.Attribute,
			DataKeyType: dataKeyType,
		}, nil
	}
	return target.Filter{}, fmt.Errorf("unknown attribute %s", c.Attribute)
}

// UserFilter builds a leaf on a built-in user attribute.
func UserFilter(subType, comparator string, values []any) target.Filter {
	return target.Filter{
		Type:       target.FilterTypeUser,
		SubType:    subType,
		Comparator: comparator,
		Values:     nonNilValues(values),
	}
}

// UserIDFilter builds a user_id leaf matching the given keys.
func UserIDFilter(comparator string, keys []string) target.Filter {
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k
	}
	return UserFilter(target.SubTypeUserID, comparator, values)
}

// AllUsers is the leaf matching every user.
func AllUsers() target.Filter {
	return target.Filter{Type: target.FilterTypeAll}
}

func nonNilValues(values []any) []any {
	if values == nil {
		return []any{}
	}
	return values
}
