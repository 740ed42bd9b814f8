package logging

import "testing"

func TestInitializeAndGet(t *testing.T) {
	if err := Initialize("debug", true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	l := Get(CategoryStore)
	if l == nil {
		t.Fatal("Get returned nil logger")
	}
	if again := Get(CategoryStore); again != l {
		t.Error("Get should cache per-category loggers")
	}
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	if err := Initialize("loud", true); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSetLevel(t *testing.T) {
	if err := Initialize("info", true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := SetLevel("warn"); err != nil {
		t.Errorf("SetLevel(warn) failed: %v", err)
	}
	if err := SetLevel("extreme"); err == nil {
		t.Error("expected error for unknown level")
	}
}
