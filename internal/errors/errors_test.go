package errors

import (
	"errors"
	"testing"
)

func TestFileError(t *testing.T) {
	underlying := errors.New("no such file or directory")
	err := NewFileError("read", "/path/to/flipper.sol", underlying)

	if err.Type != ErrorTypeFileNotFound {
		t.Errorf("Expected Type to be ErrorTypeFileNotFound, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "file read failed for /path/to/flipper.sol: no such file or directory"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestFileErrorPermission(t *testing.T) {
	err := NewFileError("read", "/root/secret.sol", errors.New("permission denied"))
	if err.Type != ErrorTypePermission {
		t.Errorf("Expected Type to be ErrorTypePermission, got %v", err.Type)
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("unknown target")
	err := NewConfigError("target", "evm", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "config error for field target (value evm): unknown target"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestEmitError(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewEmitError("Flipper", "Flipper.contract", underlying)

	if err.Type != ErrorTypeEmit {
		t.Errorf("Expected Type to be ErrorTypeEmit, got %v", err.Type)
	}

	expectedMsg := "emit Flipper.contract failed for contract Flipper: disk full"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")
	err := NewMultiError([]error{e1, nil, e2})

	if len(err.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(err.Errors))
	}

	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Errorf("Expected multi-error to unwrap to both errors")
	}

	single := NewMultiError([]error{e1})
	if single.Error() != "first" {
		t.Errorf("Expected single error message, got %q", single.Error())
	}

	empty := NewMultiError(nil)
	if empty.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", empty.Error())
	}
}
