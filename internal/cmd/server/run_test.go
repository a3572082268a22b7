package serverrun

import "testing"

func TestGetenvDefault(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })

	getenv = func(string) string { return "" }
	if got := getenvDefault("STRAND_LOG_LEVEL", "info"); got != "info" {
		t.Fatalf("want fallback, got %q", got)
	}
	getenv = func(string) string { return "debug" }
	if got := getenvDefault("STRAND_LOG_LEVEL", "info"); got != "debug" {
		t.Fatalf("want env value, got %q", got)
	}
}
