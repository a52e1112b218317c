package cmd

import (
	"fmt"
	"regexp"
	"strconv"
)

var targetPattern = regexp.MustCompile(`^([\w\-]+)(?:\[(\d+)\])?$`)

// parseTarget splits "K64F[1]" into the board type and the index among
// connected boards of that type. A bare "K64F" has no index.
func parseTarget(s string) (string, *int, error) {
	m := targetPattern.FindStringSubmatch(s)
	if m == nil {
		return "", nil, fmt.Errorf("invalid mbed target %q: expected NAME or NAME[INDEX]", s)
	}

	if m[2] == "" {
		return m[1], nil, nil
	}

	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return "", nil, fmt.Errorf("invalid index in mbed target %q: %w", s, err)
	}

	return m[1], &idx, nil
}
