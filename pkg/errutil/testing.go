// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails the test unless err is an oops error carrying the
// given string code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error, got %T: %v", err, err)
	got, ok := oopsErr.Code().(string)
	require.True(t, ok, "want a string code, got %T", oopsErr.Code())
	assert.Equal(t, code, got)
}

// AssertErrorContext fails the test unless err is an oops error whose context
// holds value under key.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error, got %T: %v", err, err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "context is missing key %q", key)
	assert.Equal(t, value, ctx[key])
}
