// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/juju/errors"
)

// MaxSliceLength bounds the element count accepted by readers.
const MaxSliceLength = 1 << 31

// chunkSize bounds the bytes allocated ahead of the data actually read, so a
// corrupted length prefix fails on a short stream instead of allocating.
const chunkSize = 1 << 20

// ErrLength is returned when a length prefix is negative or too large.
var ErrLength = errors.New("invalid length prefix")

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return errors.Trace(err)
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write bytes")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 {
		return nil, errors.Annotatef(ErrLength, "length %d", length)
	}
	var buf bytes.Buffer
	buf.Grow(min(int(length), chunkSize))
	n, err := io.CopyN(&buf, r, int64(length))
	if err != nil {
		if errors.Is(err, io.EOF) && n > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v any) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v any) error {
	data, err := ReadBytes(r)
	if err != nil {
		return errors.Trace(err)
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return errors.Trace(decoder.Decode(v))
}

// Number is the set of fixed-size element types supported by WriteSlice and ReadSlice.
type Number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// WriteSlice writes a length-prefixed slice of fixed-size numbers.
func WriteSlice[T Number](w io.Writer, s []T) error {
	if err := binary.Write(w, binary.LittleEndian, int64(len(s))); err != nil {
		return errors.Trace(err)
	}
	if len(s) == 0 {
		return nil
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, s))
}

// ReadSlice reads a slice written by WriteSlice. An empty slice is returned as nil.
func ReadSlice[T Number](r io.Reader) ([]T, error) {
	var length int64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 || length > MaxSliceLength {
		return nil, errors.Annotatef(ErrLength, "length %d", length)
	}
	if length == 0 {
		return nil, nil
	}
	var zero T
	step := max(chunkSize/int64(binary.Size(zero)), 1)
	s := make([]T, 0, min(length, step))
	for int64(len(s)) < length {
		chunk := make([]T, min(length-int64(len(s)), step))
		if err := binary.Read(r, binary.LittleEndian, chunk); err != nil {
			return nil, errors.Trace(err)
		}
		s = append(s, chunk...)
	}
	return s, nil
}

// WriteBool writes a single byte flag.
func WriteBool(w io.Writer, b bool) error {
	var v uint8
	if b {
		v = 1
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadBool reads a flag written by WriteBool.
func ReadBool(r io.Reader) (bool, error) {
	var v uint8
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return false, errors.Trace(err)
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("invalid bool flag %d", v)
	}
}
