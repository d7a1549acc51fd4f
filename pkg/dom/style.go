package dom

import (
	"strings"
	"unicode"
)

// KebabCase converts a camelCased style property to its CSS form, so plans
// may carry either "backgroundColor" or "background-color".
func KebabCase(prop string) string {
	var b strings.Builder
	b.Grow(len(prop) + 4)
	for i, r := range prop {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
