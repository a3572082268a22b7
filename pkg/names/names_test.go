package names

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckAccepts(t *testing.T) {
	for _, name := range []string{
		"orders",
		"orders-v2",
		"Orders.2026",
		"api:alice",
		"a",
		"0",
		strings.Repeat("x", 128),
	} {
		if err := Check("topic", name); err != nil {
			t.Fatalf("Check(%q): %v", name, err)
		}
	}
}

func TestCheckRejects(t *testing.T) {
	for _, name := range []string{
		"",
		"a/e",
		"/orders",
		"orders/",
		"-leading",
		".leading",
		"has space",
		"tab\there",
		strings.Repeat("x", 129),
	} {
		err := Check("group", name)
		if err == nil {
			t.Fatalf("Check(%q) = nil, want error", name)
		}
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("Check(%q) = %v, want ErrInvalid", name, err)
		}
	}
}
