package translate

import (
	"fmt"
	"strconv"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/stringutil"
	"github.com/JoobyPM/flagport/internal/target"
)

const maxKeyLen = 100

// MapFeature converts a Source flag to a Target feature with a single
// variable keyed by the flag key. Variation keys are slugs of the variation
// names, made unique within the feature.
func MapFeature(src source.Feature) (target.Feature, error) {
	values := make([]any, len(src.Variations))
	for i, v := range src.Variations {
		values[i] = v.Value
	}
	varType, err := InferVariableType(values)
	if err != nil {
		return target.Feature{}, &TranslationError{Key: src.Key, Err: fmt.Errorf("variations: %w", err)}
	}

	name := src.Name
	if name == "" {
		name = src.Key
	}
	f := target.Feature{
		Key:         src.Key,
		Name:        name,
		Description: src.Description,
		Type:        target.FeatureTypeRelease,
		Tags:        src.Tags,
		Variables: []target.Variable{{
			Key:  src.Key,
			Name: name,
			Type: varType,
		}},
		Variations: make([]target.Variation, len(src.Variations)),
	}

	used := make(map[string]bool, len(src.Variations))
	for i, v := range src.Variations {
		key := variationKey(v, i, used)
		vname := v.Name
		if vname == "" {
			vname = key
		}
		f.Variations[i] = target.Variation{
			Key:       key,
			Name:      vname,
			Variables: map[string]any{src.Key: v.Value},
		}
	}
	return f, nil
}

func variationKey(v source.Variation, i int, used map[string]bool) string {
	key := stringutil.Slugify(v.Name, maxKeyLen)
	if key == "" || used[key] {
		key = "variation-" + strconv.Itoa(i)
	}
	for used[key] {
		key += "-" + strconv.Itoa(i)
	}
	used[key] = true
	return key
}
