package semver

import (
	"cmp"
	"strconv"
	"strings"
)

// Numeric packs a dotted version into one integer, three digits per
// component, e.g. "v1.2.3-rc1" becomes 1002003.
func Numeric(v string) int {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	result := 0
	for _, part := range strings.Split(v, ".") {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}

// Compare returns -1, 0 or +1 depending on whether a is older than, equal to
// or newer than b. Missing components count as zero.
func Compare(a, b string) int {
	pa, pb := parts(a), parts(b)
	for len(pa) < len(pb) {
		pa = append(pa, 0)
	}
	for len(pb) < len(pa) {
		pb = append(pb, 0)
	}
	for i := range pa {
		if c := cmp.Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return 0
}

func parts(v string) []int {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out []int
	for _, p := range strings.Split(v, ".") {
		n, _ := strconv.Atoi(p)
		out = append(out, n)
	}
	return out
}
