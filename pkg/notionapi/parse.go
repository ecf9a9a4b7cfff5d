package notionapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageID is returned when a raw page identifier cannot be
// normalized to a canonical dashed ID.
var ErrInvalidPageID = errors.New("invalid page id")

// ParsePageID normalizes a raw page identifier to the canonical dashed form
// (8-4-4-4-12). It accepts dashed IDs, bare 32-hex IDs and URL slugs that end
// in a 32-hex ID ("My-Page-0123...ef").
func ParsePageID(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "")
	if len(s) < 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPageID, raw)
	}

	s = s[len(s)-32:]
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("%w: %q", ErrInvalidPageID, raw)
		}
	}

	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32], nil
}
