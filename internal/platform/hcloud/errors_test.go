package hcloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

func TestIsResourceLocked(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
		{
			name:     "hcloud locked error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "resource is locked"},
			expected: true,
		},
		{
			name:     "hcloud conflict error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeConflict, Message: "conflict occurred"},
			expected: true,
		},
		{
			name:     "hcloud resource locked error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeResourceLocked, Message: "resource locked"},
			expected: true,
		},
		{
			name:     "hcloud resource unavailable error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeResourceUnavailable, Message: "unavailable"},
			expected: true,
		},
		{
			name:     "hcloud not found error (not locked)",
			err:      hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "not found"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isResourceLocked(tt.err)
			if result != tt.expected {
				t.Errorf("isResourceLocked(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsInvalidParameter(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
		{
			name:     "hcloud not found error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "not found"},
			expected: true,
		},
		{
			name:     "hcloud invalid input error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeInvalidInput, Message: "invalid input"},
			expected: true,
		},
		{
			name:     "hcloud invalid server type error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeInvalidServerType, Message: "invalid server type"},
			expected: true,
		},
		{
			name:     "hcloud locked error (not invalid)",
			err:      hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "locked"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isInvalidParameter(tt.err)
			if result != tt.expected {
				t.Errorf("isInvalidParameter(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "hcloud not found",
			err:      hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "not found"},
			expected: true,
		},
		{
			name:     "hcloud other error",
			err:      hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "locked"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsNotFound(tt.err)
			if result != tt.expected {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"uniqueness error", hcloud.Error{Code: hcloud.ErrorCodeUniquenessError, Message: "SSH key with the same fingerprint already exists"}, true},
		{"wrapped uniqueness error", fmt.Errorf("create key: %w", hcloud.Error{Code: hcloud.ErrorCodeUniquenessError}), true},
		{"conflict", hcloud.Error{Code: hcloud.ErrorCodeConflict}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAlreadyExists(tt.err); got != tt.expected {
				t.Errorf("IsAlreadyExists(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("boom"), false},
		{"locked", hcloud.Error{Code: hcloud.ErrorCodeLocked}, true},
		{"rate limited", hcloud.Error{Code: hcloud.ErrorCodeRateLimitExceeded}, true},
		{"timeout", hcloud.Error{Code: hcloud.ErrorCodeTimeout}, true},
		{"service error", hcloud.Error{Code: hcloud.ErrorCodeServiceError}, true},
		{"invalid input", hcloud.Error{Code: hcloud.ErrorCodeInvalidInput}, false},
		{"not found", hcloud.Error{Code: hcloud.ErrorCodeNotFound}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
