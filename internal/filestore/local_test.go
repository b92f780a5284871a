package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")

	l, err := NewLocal(dir)
	require.NoError(t, err)

	n, err := l.Write(ctx, "abc-statement.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	data, err := l.ReadBytes(ctx, "abc-statement.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

// failingReader yields some bytes and then an error.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "%PDF-1.4 partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestLocal_WriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	_, err = l.Write(context.Background(), "partial.pdf", "application/pdf", &failingReader{})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "partial.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocal_Delete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	_, err = l.Write(ctx, "a.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	require.NoError(t, l.Delete(ctx, "a.pdf"))
	_, err = os.Stat(filepath.Join(dir, "a.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Already gone.
	assert.NoError(t, l.Delete(ctx, "a.pdf"))
	assert.Error(t, l.Delete(ctx, "../a.pdf"))
}

func TestLocal_ReadMissing(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.ReadBytes(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocal_RejectsPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("x"), 0o600))

	l, err := NewLocal(filepath.Join(root, "uploads"))
	require.NoError(t, err)

	for _, name := range []string{"../secret", "a/b.pdf", "", ".", ".."} {
		_, err := l.ReadBytes(context.Background(), name)
		assert.Error(t, err, name)
	}
}

func TestGCS_ObjectName(t *testing.T) {
	g := &GCS{bucket: "bkt", prefix: "uploads"}
	assert.Equal(t, "uploads/f.pdf", g.objectName("f.pdf"))
	assert.Equal(t, "gs://bkt/uploads/f.pdf", g.URI("f.pdf"))

	g = &GCS{bucket: "bkt"}
	assert.Equal(t, "gs://bkt/f.pdf", g.URI("f.pdf"))
}
