package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/models"
)

type fakePublisher struct {
	jobs []*models.EnrichmentJob
}

func (f *fakePublisher) PublishJob(_ context.Context, _ int64, data interface{}) error {
	f.jobs = append(f.jobs, data.(*models.EnrichmentJob))
	return nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanDirectoryEnqueuesMediaFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "sub", "b.MP4"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "a.jpg.xmp"))
	touch(t, filepath.Join(root, ".hidden", "c.jpg"))

	pub := &fakePublisher{}
	scanner := NewScanner(pub)

	enqueued, skipped, err := scanner.ScanDirectory(context.Background(), 1, root)
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)
	assert.Equal(t, 2, skipped)

	byPath := map[string]*models.EnrichmentJob{}
	for _, j := range pub.jobs {
		byPath[filepath.Base(j.SourcePath)] = j
		assert.Equal(t, int64(1), j.OwnerID)
		assert.NotEqual(t, "", j.JobID.String())
	}
	require.Contains(t, byPath, "a.jpg")
	require.Contains(t, byPath, "b.MP4")
	assert.False(t, byPath["a.jpg"].Video)
	assert.True(t, byPath["b.MP4"].Video)
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	scanner := NewScanner(&fakePublisher{})
	_, _, err := scanner.ScanDirectory(context.Background(), 1, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
