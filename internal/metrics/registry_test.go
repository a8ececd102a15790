package metrics

import "testing"

func TestInit_EnablesAndReturnsRegistry(t *testing.T) {
	if IsEnabled() {
		t.Skip("metrics already enabled by an earlier test in this binary")
	}

	reg := Init()
	if reg == nil {
		t.Fatal("Init returned nil registry")
	}
	if !IsEnabled() {
		t.Error("IsEnabled() = false after Init")
	}
	if Registry() != reg {
		t.Error("Registry() does not return the registry Init created")
	}
}
