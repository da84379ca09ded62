package services

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a referenced connection, agent or user does not exist
var ErrNotFound = errors.New("record not found")

// ErrSameOwner indicates a transfer where source and target owner are the same user
var ErrSameOwner = errors.New("target owner is already the current owner")

// ErrGatewayUnavailable indicates the pairing gateway is unreachable or returned
// a non-success response. Callers may retry.
var ErrGatewayUnavailable = errors.New("pairing gateway unavailable")

// ValidationError indicates invalid input; no mutation was attempted
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// QuotaError indicates the target owner is at or above their resource limit
type QuotaError struct {
	Resource string `json:"resource"` // agents, connections
	Current  int    `json:"current"`
	Limit    int    `json:"limit"`
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d of %d in use", e.Resource, e.Current, e.Limit)
}

// StoreError wraps an underlying data store failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
