package env

import (
	"bytes"
	"maps"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteQuotesValues(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		expected string
	}{
		{
			name:     "plain value",
			value:    "8080",
			expected: "KEY=8080\n",
		},
		{
			name:     "value with quotes",
			value:    `'URL"?zf6WH?BACd`,
			expected: `KEY="'URL\"?zf6WH?BACd"` + "\n",
		},
		{
			name:     "value with equals sign",
			value:    "key=value",
			expected: "KEY=\"key=value\"\n",
		},
		{
			name:     "value with spaces",
			value:    "value with spaces",
			expected: "KEY=\"value with spaces\"\n",
		},
		{
			name:     "multiline value",
			value:    "line1\nline2\r\n",
			expected: `KEY="line1\nline2\r\n"` + "\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, map[string]string{"KEY": tc.value}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if buf.String() != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, buf.String())
			}
		})
	}
}

func TestWriteSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]string{"B": "2", "A": "1", "C": "3"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "A=1\nB=2\nC=3\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestParse(t *testing.T) {
	input := `
# comment
PORT=8080
export MODE=production
QUOTED="a \"b\" #c\nd"
SINGLE='raw \n value'
TRAILING=value # comment
EMPTY=
`
	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{
		"PORT":     "8080",
		"MODE":     "production",
		"QUOTED":   "a \"b\" #c\nd",
		"SINGLE":   `raw \n value`,
		"TRAILING": "value",
		"EMPTY":    "",
	}
	if !maps.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing equals", "PORT"},
		{"empty key", "=value"},
		{"unterminated double quote", `KEY="value`},
		{"unterminated single quote", `KEY='value`},
		{"text after quote", `KEY="a" b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".env")
	vars := map[string]string{
		"URL":       "https://example.com/?a=b&c=d",
		"MULTILINE": "line1\nline2",
		"BACKSLASH": `C:\path`,
		"PLAIN":     "x",
	}
	if err := Save(path, vars); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !maps.Equal(got, vars) {
		t.Errorf("expected %v, got %v", vars, got)
	}
}
