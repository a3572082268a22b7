package client

import "testing"

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"type=order.created", "note=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if fields["type"] != "order.created" {
		t.Fatalf("type: %q", fields["type"])
	}
	// only the first '=' splits
	if fields["note"] != "a=b" {
		t.Fatalf("note: %q", fields["note"])
	}
}

func TestParseFieldsRejectsBadArgs(t *testing.T) {
	for _, bad := range []string{"novalue", "=v"} {
		if _, err := parseFields([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCommandTreeRegistered(t *testing.T) {
	root := NewRoot(func() string { return "http://127.0.0.1:8080" })
	for _, name := range []string{"topic", "group", "lock", "rate"} {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestTopicSubcommandsRegistered(t *testing.T) {
	topic := NewTopicCommand(func() string { return "http://127.0.0.1:8080" })
	for _, name := range []string{"list", "append", "read", "create", "trim", "subscribe"} {
		found := false
		for _, c := range topic.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("topic subcommand %q not registered", name)
		}
	}
}
