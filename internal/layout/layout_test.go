package layout

import (
	"testing"

	"github.com/leanclr/leanclr/internal/sig"
)

func noValueTypes(t *testing.T) SizeResolver {
	return func(vt *sig.TypeSig) (uint32, uint32, error) {
		t.Fatalf("unexpected value-type resolution for %v", vt)
		return 0, 0, nil
	}
}

func TestSequentialLayoutPacksByAlignment(t *testing.T) {
	c := sig.NewCache(0)
	fields := []*Field{
		{Type: c.GetPooledTypeSig(sig.I1)}, // offset 0, size 1
		{Type: c.GetPooledTypeSig(sig.I4)}, // aligns to 4 -> offset 4
		{Type: c.GetPooledTypeSig(sig.I1)}, // offset 8
	}

	size, align, err := ComputeSequentialLayout(fields, 0, 0, 0, noValueTypes(t))
	if err != nil {
		t.Fatal(err)
	}
	if fields[0].Offset != 0 {
		t.Fatalf("field0 offset = %d, want 0", fields[0].Offset)
	}
	if fields[1].Offset != 4 {
		t.Fatalf("field1 offset = %d, want 4", fields[1].Offset)
	}
	if fields[2].Offset != 8 {
		t.Fatalf("field2 offset = %d, want 8", fields[2].Offset)
	}
	if align != 4 {
		t.Fatalf("alignment = %d, want 4", align)
	}
	if size != 12 {
		t.Fatalf("size = %d, want 12 (aligned up to 4 from 9)", size)
	}
}

func TestSequentialLayoutHonorsParentSize(t *testing.T) {
	c := sig.NewCache(0)
	fields := []*Field{
		{Type: c.GetPooledTypeSig(sig.I4)},
	}
	size, _, err := ComputeSequentialLayout(fields, 8, 4, 0, noValueTypes(t))
	if err != nil {
		t.Fatal(err)
	}
	if fields[0].Offset != 8 {
		t.Fatalf("offset = %d, want 8 (parentSize)", fields[0].Offset)
	}
	if size != 12 {
		t.Fatalf("size = %d, want 12", size)
	}
}

func TestSequentialLayoutPackingCapsAlignment(t *testing.T) {
	c := sig.NewCache(0)
	fields := []*Field{
		{Type: c.GetPooledTypeSig(sig.I1)},
		{Type: c.GetPooledTypeSig(sig.I8)},
	}
	// packing=1 forces byte alignment even for an 8-byte field.
	_, align, err := ComputeSequentialLayout(fields, 0, 0, 1, noValueTypes(t))
	if err != nil {
		t.Fatal(err)
	}
	if fields[1].Offset != 1 {
		t.Fatalf("packed offset = %d, want 1", fields[1].Offset)
	}
	if align != 1 {
		t.Fatalf("alignment = %d, want 1", align)
	}
}

func TestExplicitLayoutRequiresOffset(t *testing.T) {
	c := sig.NewCache(0)
	fields := []*Field{
		{Type: c.GetPooledTypeSig(sig.I4)}, // HasExplicit: false
	}
	_, _, err := ComputeExplicitLayout(fields, 0, noValueTypes(t))
	if err == nil {
		t.Fatalf("expected BadImageFormat error for missing FieldLayout entry")
	}
}

func TestExplicitLayoutSizeIsMaxEnd(t *testing.T) {
	c := sig.NewCache(0)
	fields := []*Field{
		{Type: c.GetPooledTypeSig(sig.I4), HasExplicit: true, ExplicitOffset: 0},
		{Type: c.GetPooledTypeSig(sig.I8), HasExplicit: true, ExplicitOffset: 0}, // union-style overlap
	}
	size, align, err := ComputeExplicitLayout(fields, 0, noValueTypes(t))
	if err != nil {
		t.Fatal(err)
	}
	if size != 8 {
		t.Fatalf("size = %d, want 8 (max(0+4, 0+8))", size)
	}
	if align != 8 {
		t.Fatalf("align = %d, want 8", align)
	}
}

func TestFieldSizeAndAlignmentByRef(t *testing.T) {
	c := sig.NewCache(0)
	i4 := c.GetPooledTypeSig(sig.I4)
	byRef := &sig.TypeSig{Kind: sig.I4, ByRef: true}
	_ = i4

	size, align, err := FieldSizeAndAlignment(byRef, noValueTypes(t))
	if err != nil {
		t.Fatal(err)
	}
	if size != PointerSize || align != PointerSize {
		t.Fatalf("by-ref field should report pointer size/alignment, got %d/%d", size, align)
	}
}
