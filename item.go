// Copyright (c) 2016 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package clds is the byte-oriented facade over this module's generic
// containers: a wire encoding for (key, value) pairs, for callers that want
// to store raw bytes in a sortedlist.List[[]byte, []byte] rather than work
// with the generic API directly (serialization to disk, network transport,
// cross-process comparison).
package clds

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/agilira/go-errors"
)

const (
	// ErrCodeTruncated reports an encoded item that is shorter than its own
	// length prefixes claim.
	ErrCodeTruncated errors.ErrorCode = "CLDS_TRUNCATED_ITEM"
)

// Item is a single (key, value) pair with the lengths needed to encode and
// decode it independent of any particular List's generic type parameters.
type Item struct {
	Key   []byte
	Value []byte
}

// EncodeItem writes item to w as a length-prefixed key followed by a
// length-prefixed value, using unsigned LEB128 (binary.PutUvarint) for the
// two length prefixes.
func EncodeItem(item *Item, w io.Writer) (int, error) {
	var hdr [binary.MaxVarintLen64]byte
	total := 0

	n := binary.PutUvarint(hdr[:], uint64(len(item.Key)))
	written, err := w.Write(hdr[:n])
	total += written
	if err != nil {
		return total, err
	}
	written, err = w.Write(item.Key)
	total += written
	if err != nil {
		return total, err
	}

	n = binary.PutUvarint(hdr[:], uint64(len(item.Value)))
	written, err = w.Write(hdr[:n])
	total += written
	if err != nil {
		return total, err
	}
	written, err = w.Write(item.Value)
	total += written
	return total, err
}

// DecodeItem reads a single item previously written by EncodeItem.
func DecodeItem(r io.ByteReader) (*Item, error) {
	br, ok := r.(io.Reader)
	if !ok {
		return nil, errors.NewWithField(ErrCodeTruncated, "reader must also implement io.Reader", "operation", "DecodeItem")
	}

	keyLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	// Read through a LimitReader rather than preallocating keyLen bytes, so
	// a huge length prefix in malformed input cannot panic or exhaust memory.
	key, err := io.ReadAll(io.LimitReader(br, int64(min(keyLen, math.MaxInt64))))
	if err == nil && uint64(len(key)) != keyLen {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeTruncated, "truncated key").WithContext("operation", "DecodeItem")
	}

	valLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	value, err := io.ReadAll(io.LimitReader(br, int64(min(valLen, math.MaxInt64))))
	if err == nil && uint64(len(value)) != valLen {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeTruncated, "truncated value").WithContext("operation", "DecodeItem")
	}

	return &Item{Key: key, Value: value}, nil
}

// KVToBytes packs key and value into a single buffer using the same
// length-prefixed encoding as EncodeItem, without requiring an io.Writer.
func KVToBytes(key, value []byte) []byte {
	var buf bytes.Buffer
	_, _ = EncodeItem(&Item{Key: key, Value: value}, &buf)
	return buf.Bytes()
}

// KVFromBytes unpacks a buffer produced by KVToBytes.
func KVFromBytes(data []byte) (key, value []byte, err error) {
	item, err := DecodeItem(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return item.Key, item.Value, nil
}

// CompareKV orders two raw keys with the same three-way contract as
// sortedlist.Compare, so []byte keys can be used directly as a List's key
// type via bytes.Compare.
func CompareKV(a, b []byte) int {
	return bytes.Compare(a, b)
}
