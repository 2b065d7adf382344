package bsmt

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestHasher_Blake2b(t *testing.T) {
	hasher := NewBlake2bHasher()

	expected := blake2b.Sum256([]byte("abc"))
	assert.Equal(t, Hash(expected), hasher.Digest([]byte("abc")))
	assert.Equal(t, expected[:], hasher.Hash([]byte("a"), []byte("bc")))
}

func TestNewHasherPool(t *testing.T) {
	hasher, err := NewHasherPool(sha256.New)
	require.NoError(t, err)
	assert.Equal(t, Hash(sha256.Sum256([]byte{0})), hasher.Digest([]byte{0}))

	_, err = NewHasherPool(sha1.New)
	assert.ErrorIs(t, err, ErrInvalidHashSize)

	_, err = NewHasherPool(nil)
	assert.ErrorIs(t, err, ErrNilHashFunction)
}

func TestHasher_Concurrent(t *testing.T) {
	hasher, err := NewHasherPool(func() hash.Hash { return sha256.New() })
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("concurrent"))

	var wg sync.WaitGroup
	errs := make(chan Hash, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := hasher.Digest([]byte("concurrent")); got != expected {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("wrong digest %s", got)
	}
}

func TestBytesToHash(t *testing.T) {
	_, err := BytesToHash(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidHashSize)

	raw := make([]byte, HashSize)
	raw[31] = 1
	h, err := BytesToHash(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, h.Bytes())
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", h.String())
}
