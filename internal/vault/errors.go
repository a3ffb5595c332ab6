package vault

import (
	"errors"
	"fmt"
)

// Common errors for Vault operations.
var (
	// ErrSecretNotFound indicates the secret or its key was not found.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("vault: invalid configuration")

	// ErrEmptySecret indicates the resolved secret is empty.
	ErrEmptySecret = errors.New("vault: secret is empty")
)

// VaultError represents a Vault-specific error with additional context.
type VaultError struct {
	Op   string // Operation that failed
	Path string // Secret path if applicable
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s on path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *VaultError) Unwrap() error {
	return e.Err
}

// NewVaultError creates a new VaultError.
func NewVaultError(op, path string, err error) *VaultError {
	return &VaultError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
