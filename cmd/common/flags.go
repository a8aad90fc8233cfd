package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseProcesses parses "type=count" arguments.
func ParseProcesses(args []string) (map[string]int32, error) {
	processes := make(map[string]int32, len(args))
	for _, arg := range args {
		name, count, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid process count %q, expected type=count", arg)
		}
		n, err := strconv.ParseInt(count, 10, 32)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid process count %q: must be a non-negative integer", arg)
		}
		processes[name] = int32(n)
	}
	return processes, nil
}

// ParsePairs parses "key=value" arguments.
func ParsePairs(args []string) (map[string]string, error) {
	pairs := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q, expected key=value", arg)
		}
		pairs[key] = value
	}
	return pairs, nil
}
