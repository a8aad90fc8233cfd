// Package template expands ${VAR} references in release environments.
package template

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Lookup returns the value of a variable and whether it is set.
type Lookup func(name string) (string, bool)

// Env looks variables up in vars first and then in the process environment.
func Env(vars map[string]string) Lookup {
	return func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
}

// Substitute expands the references in input:
//
//	${VAR}          value, or empty when unset
//	${VAR:-default} default when VAR is unset or empty
//	${VAR-default}  default when VAR is unset
//	${VAR:?message} error when VAR is unset or empty
//	${VAR?message}  error when VAR is unset
func Substitute(input string, lookup Lookup) (string, error) {
	indices := varPattern.FindAllStringSubmatchIndex(input, -1)
	if len(indices) == 0 {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, idx := range indices {
		b.WriteString(input[last:idx[0]])
		v, err := evaluate(input[idx[2]:idx[3]], lookup)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
		last = idx[1]
	}
	b.WriteString(input[last:])
	return b.String(), nil
}

// Expand substitutes every value of vars. References resolve against the
// unexpanded vars and then the process environment.
func Expand(vars map[string]string) (map[string]string, error) {
	lookup := Env(maps.Clone(vars))
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		expanded, err := Substitute(v, lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}

func evaluate(expr string, lookup Lookup) (string, error) {
	name, op, operand := expr, "", ""
	// two character operators first
	for _, token := range []string{":-", ":?", "-", "?"} {
		if i := strings.Index(expr, token); i != -1 {
			name, op, operand = expr[:i], token, expr[i+len(token):]
			break
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("invalid variable expression: ${%s}", expr)
	}

	value, set := lookup(name)
	switch op {
	case "":
		return value, nil
	case "-":
		if set {
			return value, nil
		}
		return operand, nil
	case ":-":
		if set && value != "" {
			return value, nil
		}
		return operand, nil
	case "?":
		if set {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set: %s", name, operand)
	default:
		if set && value != "" {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set or empty: %s", name, operand)
	}
}
