// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTLSPair(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "api.crt")
	key := filepath.Join(dir, "api.key")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0644))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0600))

	t.Run("neither set means plain HTTP", func(t *testing.T) {
		c, k, err := resolveTLSPair("", "")
		assert.NoError(t, err)
		assert.Empty(t, c)
		assert.Empty(t, k)
	})

	t.Run("only one set is an error", func(t *testing.T) {
		_, _, err := resolveTLSPair(cert, "")
		assert.Error(t, err)

		_, _, err = resolveTLSPair("", key)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, _, err := resolveTLSPair(filepath.Join(dir, "nope.crt"), key)
		assert.Error(t, err)
	})

	t.Run("valid pair resolves", func(t *testing.T) {
		c, k, err := resolveTLSPair(cert, key)
		assert.NoError(t, err)
		assert.Equal(t, cert, c)
		assert.Equal(t, key, k)
	})
}
