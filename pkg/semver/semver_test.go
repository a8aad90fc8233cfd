package semver

import "testing"

func TestNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1.2.3", 1002003},
		{"v1.2.3", 1002003},
		{"1.2.3-rc1", 1002003},
		{"0.10", 10},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Numeric(tt.in); got != tt.want {
				t.Errorf("Numeric(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"1.2", "1.2.0", 0},
		{"1.2.3", "1.10.0", -1},
		{"2.0.0", "1.999.999", 1},
		{"1.2.3-rc1", "1.2.4", -1},
		{"1.0.0.1", "1.0.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
