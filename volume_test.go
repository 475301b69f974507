package ext2fs_test

import (
	"io"
	"testing"

	"github.com/KarpelesLab/ext2fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVolume wraps a MemVolume and can be told to fail any ReadAt/WriteAt
// whose range overlaps a configured byte offset, mirroring the teacher's
// mock_test.go error-injection-at-offset pattern.
type mockVolume struct {
	*ext2fs.MemVolume
	failAt int64
	failErr error
}

func (m *mockVolume) ReadAt(p []byte, off int64) (int, error) {
	if m.failErr != nil && off <= m.failAt && m.failAt < off+int64(len(p)) {
		return 0, m.failErr
	}
	return m.MemVolume.ReadAt(p, off)
}

func (m *mockVolume) WriteAt(p []byte, off int64) (int, error) {
	if m.failErr != nil && off <= m.failAt && m.failAt < off+int64(len(p)) {
		return 0, m.failErr
	}
	return m.MemVolume.WriteAt(p, off)
}

func TestMemVolumeReadWrite(t *testing.T) {
	v := ext2fs.NewMemVolume(0)
	data := []byte("hello world")
	n, err := v.WriteAt(data, 10)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = v.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestMemVolumeReadPastEnd(t *testing.T) {
	v := ext2fs.NewMemVolume(4)
	buf := make([]byte, 8)
	n, err := v.ReadAt(buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
}

func TestMockVolumeInjectedFailure(t *testing.T) {
	mv := &mockVolume{MemVolume: ext2fs.NewMemVolume(4096), failAt: 1024, failErr: ext2fs.IO}
	buf := make([]byte, 16)
	_, err := mv.ReadAt(buf, 1020)
	assert.ErrorIs(t, err, ext2fs.IO)

	_, err = mv.ReadAt(buf, 2000)
	assert.NoError(t, err)
}
