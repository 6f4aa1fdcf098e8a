// Package layout computes field offsets, instance/static sizes, and
// alignments for classes, following sequential or explicit layout.
package layout

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/sig"
)

// PointerSize is the size, in bytes, of a reference, managed pointer, or
// unmanaged pointer on the target platform.
const PointerSize = 8

// SizeResolver reports the fully laid-out instance size and alignment of a
// value-type TypeSig, forcing that type's field phase if needed. Supplied
// by internal/vm, which owns the class loader's phase gating; layout itself
// has no notion of "the class loader."
type SizeResolver func(vt *sig.TypeSig) (size, alignment uint32, err error)

// FieldSizeAndAlignment reports (size, alignment) for a field of the given
// type. By-ref and all reference kinds report pointer size; value types
// recursively report their fully laid-out instance size via resolve.
func FieldSizeAndAlignment(t *sig.TypeSig, resolve SizeResolver) (size, alignment uint32, err error) {
	if t == nil {
		return 0, 0, rterror.New(rterror.ExecutionEngine, "nil field type signature")
	}
	if t.ByRef {
		return PointerSize, PointerSize, nil
	}

	switch t.Kind {
	case sig.Class, sig.String, sig.Object, sig.SZArray, sig.Array, sig.Ptr, sig.FnPtr, sig.I, sig.U:
		return PointerSize, PointerSize, nil
	case sig.TypedByRef:
		return 2 * PointerSize, PointerSize, nil
	case sig.I1, sig.U1, sig.Boolean:
		return 1, 1, nil
	case sig.I2, sig.U2, sig.Char:
		return 2, 2, nil
	case sig.I4, sig.U4, sig.R4:
		return 4, 4, nil
	case sig.I8, sig.U8, sig.R8:
		return 8, 8, nil
	case sig.ValueType:
		return resolve(t)
	case sig.GenericInstKind:
		// A generic instance's by-val view is itself either class-shaped
		// (reference type) or valuetype-shaped; the inflated class
		// determines which. The resolver is expected to understand both.
		return resolve(t)
	case sig.Var, sig.MVar:
		return 0, 0, rterror.New(rterror.ExecutionEngine,
			"field_size_and_alignment called on an open generic parameter %v", t)
	default:
		return 0, 0, rterror.New(rterror.ExecutionEngine, "unhandled field kind %v", t.Kind)
	}
}

// Field is the minimal view compute_sequential_layout / compute_explicit_layout
// need of a class's declared field: its type and, for explicit layout, the
// metadata-declared byte offset.
type Field struct {
	Type           *sig.TypeSig
	ExplicitOffset uint32
	HasExplicit    bool

	// Set by the layout functions below.
	Offset    uint32
	Size      uint32
	Alignment uint32
}

func alignUp(v, a uint32) uint32 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

// ComputeSequentialLayout lays fields out in declaration order starting at
// parentSize, honoring an optional packing override (0 = natural
// alignment). It returns the resulting instance size and alignment.
func ComputeSequentialLayout(fields []*Field, parentSize, parentAlignment, packing uint32, resolve SizeResolver) (size, alignment uint32, err error) {
	offset := parentSize
	maxAlign := parentAlignment
	if maxAlign == 0 {
		maxAlign = 1
	}

	for _, f := range fields {
		fsize, falign, ferr := FieldSizeAndAlignment(f.Type, resolve)
		if ferr != nil {
			return 0, 0, ferr
		}
		effAlign := falign
		if packing != 0 && packing < effAlign {
			effAlign = packing
		}
		if effAlign == 0 {
			effAlign = 1
		}
		offset = alignUp(offset, effAlign)
		f.Offset = offset
		f.Size = fsize
		f.Alignment = effAlign
		offset += fsize
		if effAlign > maxAlign {
			maxAlign = effAlign
		}
	}

	return alignUp(offset, maxAlign), maxAlign, nil
}

// ComputeExplicitLayout assigns each field its metadata-declared offset.
// Total size is the max of (offset + field size) over all fields; a field
// with no declared offset is a malformed image.
func ComputeExplicitLayout(fields []*Field, packing uint32, resolve SizeResolver) (size, alignment uint32, err error) {
	var maxEnd uint32
	var maxAlign uint32 = 1

	for _, f := range fields {
		if !f.HasExplicit {
			return 0, 0, rterror.New(rterror.BadImageFormat,
				"explicit layout class missing a FieldLayout entry for a field")
		}
		fsize, falign, ferr := FieldSizeAndAlignment(f.Type, resolve)
		if ferr != nil {
			return 0, 0, ferr
		}
		effAlign := falign
		if packing != 0 && packing < effAlign {
			effAlign = packing
		}
		if effAlign == 0 {
			effAlign = 1
		}
		f.Offset = f.ExplicitOffset
		f.Size = fsize
		f.Alignment = effAlign

		end := f.ExplicitOffset + fsize
		if end > maxEnd {
			maxEnd = end
		}
		if effAlign > maxAlign {
			maxAlign = effAlign
		}
	}

	return alignUp(maxEnd, maxAlign), maxAlign, nil
}
