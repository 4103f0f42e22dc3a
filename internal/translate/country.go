package translate

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// countryCodes maps English country names to ISO 3166-1 alpha-2 codes.
var countryCodes = sync.OnceValue(func() map[string]string {
	names := display.English.Regions()
	out := make(map[string]string, 256)
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			r, err := language.ParseRegion(string([]rune{a, b}))
			if err != nil || !r.IsCountry() {
				continue
			}
			if name := names.Name(r); name != "" {
				out[name] = r.String()
			}
		}
	}
	return out
})

// CountryCode normalizes a country value to an uppercase alpha-2 code. A
// two letter value is uppercased as is; anything else must be the English
// name of a country.
func CountryCode(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrInvalidCountry, v)
	}
	if len(s) == 2 {
		return strings.ToUpper(s), nil
	}
	if code, ok := countryCodes()[s]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidCountry, s)
}

func countryValues(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		code, err := CountryCode(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}
