package sig

import "testing"

func TestPooledClassIdentity(t *testing.T) {
	c := NewCache(0)
	id := TypeID{ImageID: 1, Token: 0x02000005}

	a := c.GetPooledClass(id, false)
	b := c.GetPooledClass(id, false)
	if a != b {
		t.Fatalf("expected pointer identity for repeated GetPooledClass, got %p vs %p", a, b)
	}
	if !a.IsCanonical() {
		t.Fatalf("expected canonical flag set")
	}
}

func TestPooledClassDistinctKinds(t *testing.T) {
	c := NewCache(0)
	id := TypeID{ImageID: 1, Token: 0x02000005}

	ref := c.GetPooledClass(id, false)
	val := c.GetPooledClass(id, true)
	if ref == val {
		t.Fatalf("Class and ValueType views of the same type-def must not alias")
	}
	if ref.Kind != Class || val.Kind != ValueType {
		t.Fatalf("unexpected kinds: %v, %v", ref.Kind, val.Kind)
	}
}

func TestGenericInstInterning(t *testing.T) {
	c := NewCache(0)
	i4 := c.GetPooledTypeSig(I4)

	a := c.GetPooledGenericInst([]*TypeSig{i4})
	b := c.GetPooledGenericInst([]*TypeSig{i4})
	if a != b {
		t.Fatalf("expected GenericInst hash-consing to return the same pointer")
	}
}

func TestGenericClassInterning(t *testing.T) {
	c := NewCache(0)
	i4 := c.GetPooledTypeSig(I4)
	inst := c.GetPooledGenericInst([]*TypeSig{i4})

	listDef := TypeID{ImageID: 1, Token: 0x02000010}
	a := c.GetPooledGenericClass(listDef, inst)
	b := c.GetPooledGenericClass(listDef, inst)
	if a != b {
		t.Fatalf("expected GenericClass hash-consing to return the same pointer")
	}
	if a.ByVal() != a.ByVal() {
		t.Fatalf("expected ByVal() view to be cached")
	}
}

func TestSZArrayAndPtrInterning(t *testing.T) {
	c := NewCache(0)
	obj := c.GetPooledTypeSig(Object)

	a := c.GetPooledSZArray(obj)
	b := c.GetPooledSZArray(obj)
	if a != b {
		t.Fatalf("expected SZArray interning to return the same pointer")
	}

	p1 := c.GetPooledPtr(obj)
	p2 := c.GetPooledPtr(obj)
	if p1 != p2 {
		t.Fatalf("expected Ptr interning to return the same pointer")
	}
	if a == (*TypeSig)(nil) || p1 == (*TypeSig)(nil) {
		t.Fatalf("unexpected nil signature")
	}
}

func TestVarPerOwnerPosition(t *testing.T) {
	c := NewCache(0)
	owner := TypeID{ImageID: 1, Token: 0x02000020}

	v0a := c.GetPooledVar(owner, 0)
	v0b := c.GetPooledVar(owner, 0)
	v1 := c.GetPooledVar(owner, 1)
	if v0a != v0b {
		t.Fatalf("expected Var(owner,0) to be interned")
	}
	if v0a == v1 {
		t.Fatalf("Var at distinct positions must not alias")
	}
}
