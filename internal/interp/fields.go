package interp

import (
	"sync"

	"github.com/leanclr/leanclr/internal/object"
	"github.com/leanclr/leanclr/internal/sig"
	"github.com/leanclr/leanclr/internal/vm"
)

// fieldAddr is the Ref payload of a ldflda result: a managed pointer to one
// instance field, dereferenced by readField/writeField like any other
// field access.
type fieldAddr struct {
	obj *object.Object
	f   *vm.Field
}

// refFieldStore backs reference-typed instance fields. object.Object's body
// is a flat byte buffer (shared with the image loader's layout math), which
// has no room for a live Go pointer; reference-kind fields are instead kept
// in this side table, keyed by the owning object and field identity. Value-
// typed fields still round-trip through Body via slotBytes/bytesToSlot, so
// layout-sized code (sizeof, overlapping fields) behaves as laid out.
var (
	refFieldMu    sync.Mutex
	refFieldStore = map[refFieldKey]interface{}{}
)

type refFieldKey struct {
	obj *object.Object
	f   *vm.Field
}

func isReferenceField(f *vm.Field) bool {
	if f.Type == nil {
		return false
	}
	if f.Type.ByRef {
		return true
	}
	switch f.Type.Kind {
	case sig.Class, sig.String, sig.Object, sig.SZArray, sig.Array:
		return true
	default:
		return false
	}
}

func readField(obj *object.Object, f *vm.Field) Slot {
	if isReferenceField(f) {
		refFieldMu.Lock()
		v := refFieldStore[refFieldKey{obj, f}]
		refFieldMu.Unlock()
		return ref(v)
	}
	if int(f.Offset+f.Size) > len(obj.Body) {
		return i8(0)
	}
	return bytesToSlot(obj.Body[f.Offset : f.Offset+f.Size])
}

func writeField(obj *object.Object, f *vm.Field, v Slot) {
	if isReferenceField(f) {
		refFieldMu.Lock()
		refFieldStore[refFieldKey{obj, f}] = v.Ref
		refFieldMu.Unlock()
		return
	}
	b := slotBytes(v)
	if int(f.Offset)+len(b) > len(obj.Body) {
		return
	}
	copy(obj.Body[f.Offset:], b[:f.Size])
}

// staticRefStore backs reference-typed static fields, the ldsfld/stsfld
// counterpart of refFieldStore: a static field has no owning object, so it
// is keyed by field identity alone.
var (
	staticRefMu    sync.Mutex
	staticRefStore = map[*vm.Field]interface{}{}
)

func readStaticField(f *vm.Field) Slot {
	if isReferenceField(f) {
		staticRefMu.Lock()
		v := staticRefStore[f]
		staticRefMu.Unlock()
		return ref(v)
	}
	blob := f.Owner.StaticBytes()
	if int(f.Offset+f.Size) > len(blob) {
		return i8(0)
	}
	return bytesToSlot(blob[f.Offset : f.Offset+f.Size])
}

func writeStaticField(f *vm.Field, v Slot) {
	if isReferenceField(f) {
		staticRefMu.Lock()
		staticRefStore[f] = v.Ref
		staticRefMu.Unlock()
		return
	}
	blob := f.Owner.StaticBytes()
	b := slotBytes(v)
	if int(f.Offset)+len(b) > len(blob) {
		return
	}
	copy(blob[f.Offset:], b[:f.Size])
}

// refElemStore backs reference-typed array elements, the ldelem/stelem
// counterpart of refFieldStore: object.Array's Data is a flat byte buffer
// with no room for a live Go pointer, so reference-kind elements live here
// instead, keyed by the owning array and flat index.
var (
	refElemMu    sync.Mutex
	refElemStore = map[refElemKey]interface{}{}
)

type refElemKey struct {
	arr *object.Array
	idx int32
}

func isReferenceElem(cls *vm.Class) bool {
	return cls == nil || !cls.IsValueType()
}

// arrayElemSize returns the per-element byte width used to size an
// object.Array's Data buffer: the laid-out instance size for value-type
// elements, or a fixed pointer-sized slot for reference-kind elements
// (whose actual storage lives in refElemStore, not Data).
func arrayElemSize(cls *vm.Class) uint32 {
	if isReferenceElem(cls) {
		return refElemSize
	}
	return cls.InstanceSize()
}

const refElemSize = 8

func readArrayElem(arr *object.Array, idx int32, cls *vm.Class) (Slot, error) {
	off, err := arr.ElementOffset([]int32{idx})
	if err != nil {
		return Slot{}, err
	}
	if isReferenceElem(cls) {
		refElemMu.Lock()
		v := refElemStore[refElemKey{arr, idx}]
		refElemMu.Unlock()
		return ref(v), nil
	}
	end := off + int64(arr.ElemSize)
	if end > int64(len(arr.Data)) {
		return i8(0), nil
	}
	return bytesToSlot(arr.Data[off:end]), nil
}

func writeArrayElem(arr *object.Array, idx int32, cls *vm.Class, v Slot) error {
	off, err := arr.ElementOffset([]int32{idx})
	if err != nil {
		return err
	}
	if isReferenceElem(cls) {
		refElemMu.Lock()
		refElemStore[refElemKey{arr, idx}] = v.Ref
		refElemMu.Unlock()
		return nil
	}
	b := slotBytes(v)
	end := off + int64(arr.ElemSize)
	if end > int64(len(arr.Data)) {
		return nil
	}
	copy(arr.Data[off:end], b[:arr.ElemSize])
	return nil
}

// classRefOfSlot extracts v's runtime class as an object.ClassRef, or nil
// for a null reference, for use with object.CheckStore's covariance check.
func classRefOfSlot(v Slot) object.ClassRef {
	o := asObject(v)
	if o == nil {
		return nil
	}
	return o.Class
}

// assignableClassRef adapts vm.AssignableTo to object.CheckStore's
// ClassRef-typed assignability callback.
func assignableClassRef(from, to object.ClassRef) bool {
	fc, ok := from.(*vm.Class)
	if !ok {
		return false
	}
	tc, ok := to.(*vm.Class)
	if !ok {
		return false
	}
	return vm.AssignableTo(fc, tc)
}

// assignableObj reports whether obj (a non-nil reference) is assignable to
// target, per spec's class-hierarchy walk (internal/vm.AssignableTo),
// falling back to false for objects whose Class isn't a *vm.Class (e.g. a
// boxed primitive allocated without a full class graph in a unit test).
func assignableObj(obj *object.Object, target *vm.Class) bool {
	from, ok := obj.Class.(*vm.Class)
	if !ok {
		return false
	}
	return vm.AssignableTo(from, target)
}
