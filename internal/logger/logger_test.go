package logger

import "testing"

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "local", "production", ""} {
		log, err := New(env)
		if err != nil {
			t.Fatalf("env %q: %v", env, err)
		}
		if log == nil {
			t.Fatalf("env %q: expected logger", env)
		}
	}
	if OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
