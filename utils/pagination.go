package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	PageSizeDefault = 20
	PageSizeMax     = 100
)

// GetPaginationParams resolves optional offset and limit values into concrete ones.
// A missing or negative offset becomes 0; a missing or non-positive limit becomes
// PageSizeDefault, and limits above PageSizeMax are capped.
func GetPaginationParams(offset *int, limit *int) (int, int) {
	finalOffset := 0
	finalLimit := PageSizeDefault

	if offset != nil && *offset >= 0 {
		finalOffset = *offset
	}

	if limit != nil && *limit > 0 {
		finalLimit = min(*limit, PageSizeMax)
	}

	return finalOffset, finalLimit
}

// ParseOptionalInt parses a query value; an empty value yields nil.
func ParseOptionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", raw)
	}
	return &v, nil
}
