package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	hash, err := ComputeIdentity(path, 7)
	require.NoError(t, err)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc37", hash)
}

func TestComputeIdentityDistinguishesOwners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("same bytes"), 0o644))

	h1, err := ComputeIdentity(path, 1)
	require.NoError(t, err)
	h2, err := ComputeIdentity(path, 2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeIdentityMissingFile(t *testing.T) {
	_, err := ComputeIdentity(filepath.Join(t.TempDir(), "missing.jpg"), 1)
	assert.Error(t, err)
}
