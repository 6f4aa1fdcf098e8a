// Package object implements the managed object model: object headers and
// bodies, boxing/unboxing, array creation, and UTF-16 string encoding.
package object

import (
	"sync/atomic"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"

	"github.com/leanclr/leanclr/internal/rterror"
)

// ClassRef is the minimal view object needs of a vm.Class: enough to size
// and tag an allocation without importing internal/vm (which itself will
// import internal/object for allocation), avoiding an import cycle.
type ClassRef interface {
	// InstanceSize is the instance body size in bytes, header excluded.
	InstanceSize() uint32
	// IsValueType reports whether this class is a value type (used to
	// reject invalid boxing/unboxing targets).
	IsValueType() bool
}

// Header is the fixed-size prefix of every reference-object allocation.
// monitorIdx lazily indexes into a monitor table allocated on demand the
// first time the object is used with Monitor.Enter or as a lock target;
// 0 means "no monitor yet."
type Header struct {
	Class      ClassRef
	monitorIdx uint32
}

// MonitorIndex returns the object's monitor-table slot, allocating one via
// alloc on first use. alloc is supplied by internal/vm's monitor table so
// that object identity (this Header) and monitor storage stay decoupled.
func (h *Header) MonitorIndex(alloc func() uint32) uint32 {
	for {
		idx := atomic.LoadUint32(&h.monitorIdx)
		if idx != 0 {
			return idx
		}
		newIdx := alloc()
		if atomic.CompareAndSwapUint32(&h.monitorIdx, 0, newIdx) {
			return newIdx
		}
	}
}

// Object is a heap reference: a header followed by a flat byte body sized
// to the owning class's laid-out instance size.
type Object struct {
	Header
	Body []byte
}

// HeaderSize is the fixed byte size of Header's in-memory representation
// as seen by managed code (a single class pointer; the monitor index is a
// runtime-private implementation detail not counted in the ECMA-335 object
// layout exposed to bytecode).
const HeaderSize = 8

// New allocates a zero-filled object of class cls.
func New(cls ClassRef) *Object {
	return &Object{
		Header: Header{Class: cls},
		Body:   make([]byte, cls.InstanceSize()),
	}
}

// Box copies a value type's raw bits into a freshly allocated object:
// allocates and copies the value bits after the header.
func Box(cls ClassRef, data []byte) (*Object, error) {
	if !cls.IsValueType() {
		return nil, rterror.New(rterror.ExecutionEngine, "Box called on a non-value-type class")
	}
	o := New(cls)
	copy(o.Body, data)
	return o, nil
}

// Unbox returns a pointer to the value bits inside a boxed object, after
// checking class equality for type safety.
func Unbox(o *Object, expect ClassRef) ([]byte, error) {
	if o == nil {
		return nil, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "unbox of a null reference")
	}
	if o.Class != expect {
		return nil, rterror.New(rterror.InvalidCast,
			"unbox target class mismatch: object is %v, expected %v", o.Class, expect)
	}
	return o.Body, nil
}

// Array is an SZ (single-dimension, zero-based) or multi-rank managed
// array: length(s) plus inline element storage.
type Array struct {
	Header
	ElemClass   ClassRef
	ElemSize    uint32
	Lengths     []int32 // len(Lengths) == 1 for SZ arrays
	LowerBounds []int32 // nil for SZ arrays (bound 0 implied)
	Data        []byte
}

// NewSZArray allocates a zero-based single-dimension array of length n.
func NewSZArray(arrClass ClassRef, elemClass ClassRef, elemSize uint32, n int32) (*Array, error) {
	if n < 0 {
		return nil, rterror.New(rterror.Argument, "negative array length %d", n)
	}
	return &Array{
		Header:    Header{Class: arrClass},
		ElemClass: elemClass,
		ElemSize:  elemSize,
		Lengths:   []int32{n},
		Data:      make([]byte, uint64(elemSize)*uint64(n)),
	}, nil
}

// NewMultiRankArray allocates a multi-dimensional array with the given
// per-dimension lengths and optional lower bounds (nil defaults all
// bounds to zero).
func NewMultiRankArray(arrClass ClassRef, elemClass ClassRef, elemSize uint32, lengths, lowerBounds []int32) (*Array, error) {
	total := int64(1)
	for _, l := range lengths {
		if l < 0 {
			return nil, rterror.New(rterror.Argument, "negative array dimension %d", l)
		}
		total *= int64(l)
	}
	return &Array{
		Header:      Header{Class: arrClass},
		ElemClass:   elemClass,
		ElemSize:    elemSize,
		Lengths:     append([]int32(nil), lengths...),
		LowerBounds: append([]int32(nil), lowerBounds...),
		Data:        make([]byte, uint64(elemSize)*uint64(total)),
	}, nil
}

// Rank returns the array's number of dimensions.
func (a *Array) Rank() int { return len(a.Lengths) }

// flatIndex converts per-dimension indices (already bound-adjusted) to a
// flat element offset, row-major, matching CLI array layout.
func (a *Array) flatIndex(indices []int32) (int64, error) {
	if len(indices) != len(a.Lengths) {
		return 0, rterror.New(rterror.ExecutionEngine, "array index arity mismatch")
	}
	var flat int64
	for dim := 0; dim < len(a.Lengths); dim++ {
		lb := int32(0)
		if a.LowerBounds != nil {
			lb = a.LowerBounds[dim]
		}
		idx := indices[dim] - lb
		if idx < 0 || idx >= a.Lengths[dim] {
			return 0, rterror.Wrap(rterror.IndexOutOfRange, rterror.ErrIndexOutOfRange,
				"dimension %d index %d out of range [0,%d)", dim, idx, a.Lengths[dim])
		}
		flat = flat*int64(a.Lengths[dim]) + int64(idx)
	}
	return flat, nil
}

// ElementOffset returns the byte offset of the element at indices within
// a.Data, performing the array-store bounds check (reused for
// loads too — both need the same bound math).
func (a *Array) ElementOffset(indices []int32) (int64, error) {
	flat, err := a.flatIndex(indices)
	if err != nil {
		return 0, err
	}
	return flat * int64(a.ElemSize), nil
}

// CheckStore verifies an array-covariance store: v must be assignable to
// the array's element class. assignable is supplied by internal/vm's
// class hierarchy walk to avoid an import cycle.
func CheckStore(a *Array, v ClassRef, assignable func(from, to ClassRef) bool) error {
	if v == nil {
		return nil // storing null is always legal into a reference-typed array
	}
	if !assignable(v, a.ElemClass) {
		return rterror.Wrap(rterror.ArrayTypeMismatch, rterror.ErrArrayTypeMismatch,
			"cannot store %v into array of %v", v, a.ElemClass)
	}
	return nil
}

// StringHeaderSize mirrors OffsetToStringData: the byte offset from the
// start of a String object's body to the first UTF-16 code unit. A
// 4-byte length prefix precedes the character data.
const StringHeaderSize = 4

// String is the managed string representation: a length-prefixed UTF-16
// payload, as .10 describes.
type String struct {
	Header
	Units []uint16 // UTF-16 code units, length-prefixed conceptually via len(Units)
}

// NewStringFromUTF8 decodes a Go (UTF-8) string into a managed String,
// encoding its runes to UTF-16 code units with the standard library's
// unicode/utf16. It does not go through the golang.org/x/text decoder that
// DecodeUTF16LEBytes uses.
func NewStringFromUTF8(strClass ClassRef, s string) (*String, error) {
	units := utf16.Encode([]rune(s))
	return &String{Header: Header{Class: strClass}, Units: units}, nil
}

// Len returns the string's length in UTF-16 code units.
func (s *String) Len() int32 { return int32(len(s.Units)) }

// utf16LEDecoder is the decoder used to interpret raw little-endian UTF-16
// byte spans (e.g. when a string's Units must be round-tripped through a
// byte buffer for a PInvoke/marshal boundary); kept here rather than in
// internal/image so the object model and the metadata heap reader agree
// on one transcoding policy.
var utf16LEDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// DecodeUTF16LEBytes decodes a raw little-endian UTF-16 byte buffer (as
// found in the #US heap or a marshaled BSTR) into code units.
func DecodeUTF16LEBytes(b []byte) ([]uint16, error) {
	out, err := utf16LEDecoder.Bytes(b)
	if err != nil {
		return nil, rterror.Wrap(rterror.BadImageFormat, err, "invalid UTF-16LE byte sequence")
	}
	return utf16.Encode([]rune(string(out))), nil
}
