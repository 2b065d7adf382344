package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyBytes(t *testing.T) {
	assert.Nil(t, CopyBytes(nil))

	src := []byte{1, 2, 3}
	dst := CopyBytes(src)
	require.Equal(t, src, dst)
	dst[0] = 9
	assert.Equal(t, byte(1), src[0])
}

func TestUint64RoundTrip(t *testing.T) {
	buf := Uint64ToBytes(0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)

	v, ok := BytesToUint64(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(0x0102030405060708), v)

	_, ok = BytesToUint64([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "ref:", BytesToString([]byte("ref:")))
	assert.Equal(t, "", BytesToString(nil))
}
