package translate

import (
	"fmt"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/stringutil"
	"github.com/JoobyPM/flagport/internal/target"
)

// MapSegmentToFilters converts a segment's membership to a filter tree:
// the included users or any rule, and-ed with the exclusion of the excluded
// users when there are any.
func (m Mapper) MapSegmentToFilters(seg source.Segment) (target.Filter, error) {
	anyOf := make([]target.Filter, 0, len(seg.Rules)+1)
	if len(seg.Included) > 0 {
		anyOf = append(anyOf, UserIDFilter(target.ComparatorEqual, seg.Included))
	}

	for _, r := range seg.Rules {
		for _, c := range r.Clauses {
			if isSegmentMatch(c) {
				return target.Filter{}, ErrSegmentMatchInSegment
			}
		}
		if r.Weight != nil {
			return target.Filter{}, ErrWeightedSegmentRule
		}

		leaves := make([]target.Filter, 0, len(r.Clauses))
		for _, c := range r.Clauses {
			f, err := m.MapClause(c)
			if err != nil {
				return target.Filter{}, err
			}
			leaves = append(leaves, f)
		}
		anyOf = append(anyOf, target.And(leaves...))
	}

	tree := target.Or(anyOf...)
	if len(seg.Excluded) > 0 {
		tree = target.And(tree, UserIDFilter(target.ComparatorNotEqual, seg.Excluded))
	}
	return tree, nil
}

// MapSegment converts a segment of one environment to a reusable audience.
func (m Mapper) MapSegment(seg source.Segment, environmentKey string) (target.Audience, error) {
	filters, err := m.MapSegmentToFilters(seg)
	if err != nil {
		return target.Audience{}, &TranslationError{Key: seg.Key, Environment: environmentKey, Err: err}
	}
	name := seg.Name
	if name == "" {
		name = seg.Key
	}
	return target.Audience{
		Key:         AudienceKey(seg.Key, environmentKey),
		Name:        fmt.Sprintf("%s (%s)", stringutil.Truncate(name, 80), environmentKey),
		Description: seg.Description,
		Tags:        seg.Tags,
		Filters:     filters,
	}, nil
}
