// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
)

// ErrIndexingDisabled is returned by torrent-indexing operations when the
// optional indexing subsystem was not configured. Callers must surface this
// immediately rather than degrade to a silent no-op.
var ErrIndexingDisabled = errors.New("torrent indexing requested but nyaa indexer is not configured (set nyaaEnabled)")

// ProviderError wraps a failure from a named upstream source.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError tags an underlying cause with its provider identifier.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// ValidationError reports input data that failed validation, carrying the
// offending field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a lookup by id or external id that found nothing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given resource and id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// RateLimitError reports quota exhaustion against an upstream source.
type RateLimitError struct {
	Provider   string
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s, retry after %ds", e.Provider, e.RetryAfter)
}

// NewRateLimitError builds a RateLimitError for the given provider.
func NewRateLimitError(provider string, retryAfter int) *RateLimitError {
	return &RateLimitError{Provider: provider, RetryAfter: retryAfter}
}
