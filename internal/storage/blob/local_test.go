package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:4000/blobs/")
	require.NoError(t, err)

	url, err := s.Put(ctx, "videos-hls/abc/master.m3u8", strings.NewReader("#EXTM3U\n"), 8, "application/vnd.apple.mpegurl")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000/blobs/videos-hls/abc/master.m3u8", url)

	rc, info, err := s.Get(ctx, "videos-hls/abc/master.m3u8")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(body))
	assert.Equal(t, int64(8), info.Size)
}

func TestLocalStore_GetMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "videos-hls/nope/master.m3u8")
	require.ErrorIs(t, err, ErrNotFound)

	// a prefix that exists as a directory is not an object
	_, err = s.Put(context.Background(), "a/b.ts", strings.NewReader("x"), 1, "")
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_KeyCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "")
	require.NoError(t, err)

	p, err := s.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))

	_, err = s.path("/")
	require.Error(t, err)
}

func TestLocalStore_FailedPutLeavesNothing(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "videos-hls/abc/v0/fileSequence0.ts", iotest.ErrReader(errors.New("disk read")), 10, "video/mp2t")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "videos-hls", "abc", "v0"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
