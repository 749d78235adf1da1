package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{OK, "OK"},
		{OutOfMemory, "OutOfMemory"},
		{DeleteManagedObject, "DeleteManagedObject"},
		{ContainerFull, "ContainerFull"},
		{Code(99), "Code(99)"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String() = %q, want %q", int(tt.code), got, tt.want)
		}
	}
}

func TestWrappedCodeMatches(t *testing.T) {
	err := fmt.Errorf("gc: attach: %w", ContainerFull)
	if !errors.Is(err, ContainerFull) {
		t.Fatalf("errors.Is(%v, ContainerFull) = false", err)
	}
	if errors.Is(err, OutOfMemory) {
		t.Errorf("errors.Is(%v, OutOfMemory) = true", err)
	}
	if got := Of(err); got != ContainerFull {
		t.Errorf("Of(%v) = %v, want ContainerFull", err, got)
	}
}

func TestOf(t *testing.T) {
	if got := Of(nil); got != OK {
		t.Errorf("Of(nil) = %v, want OK", got)
	}
	if got := Of(errors.New("plain")); got != InvalidState {
		t.Errorf("Of(plain) = %v, want InvalidState", got)
	}
}
