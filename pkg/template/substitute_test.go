package template

import (
	"maps"
	"testing"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"HOST": "db", "EMPTY": ""}
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "no references", input: "plain", want: "plain"},
		{name: "set", input: "postgres://${HOST}:5432", want: "postgres://db:5432"},
		{name: "unset", input: "x${DASHBOARD_TEST_UNSET}y", want: "xy"},
		{name: "default when unset", input: "${DASHBOARD_TEST_UNSET:-5432}", want: "5432"},
		{name: "default when empty", input: "${EMPTY:-fallback}", want: "fallback"},
		{name: "dash keeps empty", input: "${EMPTY-fallback}", want: ""},
		{name: "dash default when unset", input: "${DASHBOARD_TEST_UNSET-fallback}", want: "fallback"},
		{name: "required set", input: "${HOST:?host required}", want: "db"},
		{name: "required empty", input: "${EMPTY:?required}", wantErr: true},
		{name: "question allows empty", input: "${EMPTY?required}", want: ""},
		{name: "question unset", input: "${DASHBOARD_TEST_UNSET?required}", wantErr: true},
		{name: "empty name", input: "${:-x}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.input, Env(vars))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Substitute: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExpandUsesProcessEnvironment(t *testing.T) {
	t.Setenv("DASHBOARD_TEST_REGION", "eu")

	got, err := Expand(map[string]string{
		"HOST": "db.${DASHBOARD_TEST_REGION}",
		"URL":  "postgres://${HOST}/app",
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := map[string]string{
		"HOST": "db.eu",
		"URL":  "postgres://db.${DASHBOARD_TEST_REGION}/app",
	}
	if !maps.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExpandReportsVariable(t *testing.T) {
	_, err := Expand(map[string]string{"TOKEN": "${DASHBOARD_TEST_UNSET:?token required}"})
	if err == nil || err.Error() != "TOKEN: variable DASHBOARD_TEST_UNSET is not set or empty: token required" {
		t.Errorf("unexpected error %v", err)
	}
}
