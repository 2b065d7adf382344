// Copyright 2022 bnb-chain. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package bsmt

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Node wire format: a CBOR array of exactly three byte strings.
//
//	internal: [h'00', left, right]   (empty byte string for a nil child)
//	leaf:     [h'01', keyHash, value]
const (
	tagInternal byte = 0x00
	tagLeaf     byte = 0x01

	nodeItems         = 3
	majorTypeBytes    = 2
	majorTypeShift    = 5
	indefiniteBytes   = 0x5f
	maxNodeArrayItems = 16
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: maxNodeArrayItems,
	}).DecMode(); err != nil {
		panic(err)
	}
}

type wireNode struct {
	_   struct{} `cbor:",toarray"`
	Tag []byte
	A   []byte
	B   []byte
}

func encodeInternal(left, right []byte) []byte {
	return encodeNode(tagInternal, left, right)
}

func encodeLeaf(keyHash, value []byte) []byte {
	return encodeNode(tagLeaf, keyHash, value)
}

func encodeNode(tag byte, a, b []byte) []byte {
	// nil slices would be written as CBOR null, the format wants empty byte strings
	if a == nil {
		a = []byte{}
	}
	if b == nil {
		b = []byte{}
	}
	data, err := encMode.Marshal(wireNode{Tag: []byte{tag}, A: a, B: b})
	if err != nil {
		// a fixed triple of byte strings always encodes
		panic(errors.Wrap(err, "encode node"))
	}
	return data
}

// DecodeNode parses the canonical encoding of a node. Any deviation from the
// wire format is reported as ErrMalformedNode.
func DecodeNode(data []byte) (Node, error) {
	var items []cbor.RawMessage
	if err := decMode.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(ErrMalformedNode, "%v", err)
	}
	if len(items) != nodeItems {
		return nil, errors.Wrapf(ErrMalformedNode, "expected %d items, got %d", nodeItems, len(items))
	}
	fields := make([][]byte, nodeItems)
	for i, item := range items {
		field, err := decodeByteString(item)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		fields[i] = field
	}
	if len(fields[0]) != 1 {
		return nil, errors.Wrapf(ErrMalformedNode, "tag must be 1 byte, got %d", len(fields[0]))
	}

	switch tag := fields[0][0]; tag {
	case tagInternal:
		left, err := decodeChild(fields[1])
		if err != nil {
			return nil, errors.Wrap(err, "left child")
		}
		right, err := decodeChild(fields[2])
		if err != nil {
			return nil, errors.Wrap(err, "right child")
		}
		return &InternalNode{Left: left, Right: right}, nil
	case tagLeaf:
		keyHash, err := BytesToHash(fields[1])
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedNode, "leaf key hash: %v", err)
		}
		return &LeafNode{KeyHash: keyHash, Value: fields[2]}, nil
	default:
		return nil, errors.Wrapf(ErrMalformedNode, "unknown tag 0x%02x", tag)
	}
}

func decodeByteString(raw cbor.RawMessage) ([]byte, error) {
	if len(raw) == 0 || raw[0]>>majorTypeShift != majorTypeBytes || raw[0] == indefiniteBytes {
		return nil, errors.Wrap(ErrMalformedNode, "expected a definite-length byte string")
	}
	var field []byte
	if err := decMode.Unmarshal(raw, &field); err != nil {
		return nil, errors.Wrapf(ErrMalformedNode, "%v", err)
	}
	if field == nil {
		field = []byte{}
	}
	return field, nil
}

func decodeChild(field []byte) (*Hash, error) {
	if len(field) == 0 {
		return nil, nil
	}
	child, err := BytesToHash(field)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNode, "child reference: %v", err)
	}
	return &child, nil
}
