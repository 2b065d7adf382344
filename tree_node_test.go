package bsmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalNode_Encode(t *testing.T) {
	// [h'00', h'', h'']
	assert.Equal(t, []byte{0x83, 0x41, 0x00, 0x40, 0x40}, (&InternalNode{}).Encode())

	var left Hash
	left[0] = 0xab
	encoded := (&InternalNode{Left: &left}).Encode()
	require.Len(t, encoded, 1+2+2+HashSize+1)
	assert.Equal(t, []byte{0x83, 0x41, 0x00, 0x58, 0x20, 0xab}, encoded[:6])
	assert.Equal(t, byte(0x40), encoded[len(encoded)-1])
}

func TestLeafNode_Encode(t *testing.T) {
	var keyHash Hash
	for i := range keyHash {
		keyHash[i] = 0x11
	}
	encoded := (&LeafNode{KeyHash: keyHash, Value: []byte("P")}).Encode()

	expected := []byte{0x83, 0x41, 0x01, 0x58, 0x20}
	expected = append(expected, keyHash[:]...)
	expected = append(expected, 0x41, 'P')
	assert.Equal(t, expected, encoded)

	// a nil value encodes like an empty one
	assert.Equal(t,
		(&LeafNode{KeyHash: keyHash, Value: []byte{}}).Encode(),
		(&LeafNode{KeyHash: keyHash}).Encode())
}

func TestDecodeNode_RoundTrip(t *testing.T) {
	var left, keyHash Hash
	left[31] = 7
	keyHash[0] = 9

	nodes := []Node{
		&InternalNode{},
		&InternalNode{Left: &left},
		NewInternalNode(left, keyHash),
		&LeafNode{KeyHash: keyHash, Value: []byte{}},
		&LeafNode{KeyHash: keyHash, Value: []byte("hello world")},
	}
	for _, node := range nodes {
		decoded, err := DecodeNode(node.Encode())
		require.NoError(t, err)
		assert.Equal(t, node, decoded)
		assert.True(t, bytes.Equal(node.Encode(), decoded.Encode()))
	}
}

func TestDecodeNode_Malformed(t *testing.T) {
	valid := (&LeafNode{Value: []byte("v")}).Encode()

	cases := map[string][]byte{
		"empty":            {},
		"not an array":     {0x41, 0x00},
		"two items":        {0x82, 0x41, 0x00, 0x40},
		"four items":       {0x84, 0x41, 0x00, 0x40, 0x40, 0x40},
		"unknown tag":      encodeNode(0x02, nil, nil),
		"long tag":         {0x83, 0x42, 0x00, 0x00, 0x40, 0x40},
		"integer tag":      {0x83, 0x00, 0x40, 0x40},
		"text child":       {0x83, 0x41, 0x00, 0x60, 0x40},
		"short child":      encodeInternal([]byte{1, 2, 3}, nil),
		"short key hash":   encodeLeaf([]byte{1}, []byte("v")),
		"truncated":        valid[:len(valid)-1],
		"indefinite bytes": {0x83, 0x41, 0x00, 0x5f, 0xff, 0x40},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeNode(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedNode)
		})
	}
}

func TestNode_HashStability(t *testing.T) {
	hasher := NewBlake2bHasher()
	var a, b Hash
	a[0], b[1] = 1, 2

	assert.Equal(t, NewInternalNode(a, b).Hash(hasher), NewInternalNode(a, b).Hash(hasher))
	assert.NotEqual(t, NewInternalNode(a, b).Hash(hasher), NewInternalNode(b, a).Hash(hasher))
	assert.Equal(t,
		hasher.Digest((&LeafNode{KeyHash: a, Value: []byte("x")}).Encode()),
		(&LeafNode{KeyHash: a, Value: []byte("x")}).Hash(hasher))
}
