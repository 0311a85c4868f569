// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package scale implements the subset of the SCALE (Simple Concatenated
// Aggregate Little-Endian) codec used across the parachain packages: fixed
// width integers, compact integers, structs, slices, and the
// VaryingDataType enum pattern used for wire-level sum types such as
// Statement and PoVData.
package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// VaryingDataType is implemented by enum-shaped wire types. Index
// identifies which variant is currently held; Value returns it; Set
// replaces it, validating that val is a registered variant.
type VaryingDataType interface {
	Index() uint
	Value() any
	Set(val any) error
}

// Marshal encodes v using SCALE.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, reflect.ValueOf(v)); err != nil {
		return nil, fmt.Errorf("scale: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

// MustMarshal is Marshal but panics on error.
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Unmarshal decodes data into v, which must be a pointer.
func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("scale: unmarshal: target must be a pointer, got %T", v)
	}
	r := bytes.NewReader(data)
	if err := decodeValue(r, rv.Elem()); err != nil {
		return fmt.Errorf("scale: unmarshal: %w", err)
	}
	return nil
}

func encodeValue(w *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}

	if vdt, ok := v.Interface().(VaryingDataType); ok {
		idx := vdt.Index()
		if idx > 255 {
			return fmt.Errorf("variant index %d exceeds byte range", idx)
		}
		w.WriteByte(byte(idx))
		return encodeValue(w, reflect.ValueOf(vdt.Value()))
	}

	if m, ok := v.Interface().(interface{ MarshalSCALE() ([]byte, error) }); ok {
		b, err := m.MarshalSCALE()
		if err != nil {
			return err
		}
		w.Write(b)
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			w.WriteByte(0)
			return nil
		}
		w.WriteByte(1)
		return encodeValue(w, v.Elem())
	case reflect.Bool:
		if v.Bool() {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case reflect.Uint8:
		w.WriteByte(byte(v.Uint()))
	case reflect.Uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v.Uint()))
		w.Write(b[:])
	case reflect.Uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.Uint()))
		w.Write(b[:])
	case reflect.Uint64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.Uint())
		w.Write(b[:])
	case reflect.Uint, reflect.Int:
		return encodeCompact(w, v.Uint())
	case reflect.String:
		return encodeBytesWithLength(w, []byte(v.String()))
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return encodeBytesWithLength(w, v.Bytes())
		}
		if err := encodeCompact(w, uint64(v.Len())); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if field.PkgPath != "" { // unexported
				continue
			}
			if err := encodeValue(w, v.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
		}
	case reflect.Interface:
		return encodeValue(w, v.Elem())
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

func encodeBytesWithLength(w *bytes.Buffer, b []byte) error {
	if err := encodeCompact(w, uint64(len(b))); err != nil {
		return err
	}
	w.Write(b)
	return nil
}

// encodeCompact implements SCALE's compact integer encoding.
func encodeCompact(w *bytes.Buffer, n uint64) error {
	switch {
	case n < 1<<6:
		w.WriteByte(byte(n << 2))
	case n < 1<<14:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n<<2)|0b01)
		w.Write(b[:])
	case n < 1<<30:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n<<2)|0b10)
		w.Write(b[:])
	default:
		var buf []byte
		for n > 0 {
			buf = append(buf, byte(n))
			n >>= 8
		}
		w.WriteByte(byte((len(buf)-4)<<2 | 0b11))
		w.Write(buf)
	}
	return nil
}

func decodeValue(r *bytes.Reader, v reflect.Value) error {
	if !v.CanSet() {
		return fmt.Errorf("cannot set value of kind %s", v.Kind())
	}

	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(interface{ UnmarshalSCALE(io.Reader) error }); ok {
			return u.UnmarshalSCALE(r)
		}
	}

	switch v.Kind() {
	case reflect.Ptr:
		tag, err := r.ReadByte()
		if err != nil {
			return err
		}
		if tag == 0 {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		elem := reflect.New(v.Type().Elem())
		if err := decodeValue(r, elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	case reflect.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v.SetBool(b != 0)
	case reflect.Uint8:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
	case reflect.Uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		v.SetUint(uint64(binary.LittleEndian.Uint16(b[:])))
	case reflect.Uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		v.SetUint(uint64(binary.LittleEndian.Uint32(b[:])))
	case reflect.Uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		v.SetUint(binary.LittleEndian.Uint64(b[:]))
	case reflect.Uint, reflect.Int:
		n, err := decodeCompact(r)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.String:
		b, err := decodeBytesWithLength(r)
		if err != nil {
			return err
		}
		v.SetString(string(b))
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := decodeBytesWithLength(r)
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		n, err := decodeCompact(r)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(v.Type(), int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := decodeValue(r, out.Index(i)); err != nil {
				return err
			}
		}
		v.Set(out)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := decodeValue(r, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		if _, ok := addrIfVDT(v); ok {
			return fmt.Errorf("%s implements VaryingDataType but not UnmarshalSCALE; "+
				"varying data types must provide a custom decoder", v.Type())
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).PkgPath != "" {
				continue
			}
			if err := decodeValue(r, v.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", v.Type().Field(i).Name, err)
			}
		}
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

func addrIfVDT(v reflect.Value) (VaryingDataType, bool) {
	if !v.CanAddr() {
		return nil, false
	}
	vdt, ok := v.Addr().Interface().(VaryingDataType)
	return vdt, ok
}

func decodeBytesWithLength(r *bytes.Reader) ([]byte, error) {
	n, err := decodeCompact(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeCompact(r *bytes.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil
	case 0b01:
		second, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16([]byte{first, second})) >> 2, nil
	case 0b10:
		rest := make([]byte, 3)
		if _, err := io.ReadFull(r, rest); err != nil {
			return 0, err
		}
		full := append([]byte{first}, rest...)
		return uint64(binary.LittleEndian.Uint32(full)) >> 2, nil
	default:
		numBytes := int(first>>2) + 4
		buf := make([]byte, numBytes)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		var n uint64
		for i := numBytes - 1; i >= 0; i-- {
			n = n<<8 | uint64(buf[i])
		}
		return n, nil
	}
}

// ReadVariantIndex reads the single-byte variant discriminant a
// VaryingDataType's UnmarshalSCALE implementation should dispatch on.
func ReadVariantIndex(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read variant index: %w", err)
	}
	return b[0], nil
}

// DecodeInto decodes the next SCALE-encoded value from r into dst, which
// must be a pointer. Intended for use inside a VaryingDataType's
// UnmarshalSCALE implementation, after the variant index has been read.
func DecodeInto(r io.Reader, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("scale: decode into: target must be a pointer, got %T", dst)
	}
	br, ok := r.(*bytes.Reader)
	if !ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		br = bytes.NewReader(b)
	}
	return decodeValue(br, rv.Elem())
}
