package vm

import (
	"testing"

	"github.com/leanclr/leanclr/internal/sig"
)

// fakeResolver implements Resolver for unit tests using already-built
// Class graphs; DeclaredFields/Methods/etc. are pre-seeded per class.
type fakeResolver struct {
	interfaces   map[*Class][]*sig.TypeSig
	nested       map[*Class][]*Class
	fields       map[*Class][]*FieldDecl
	methods      map[*Class][]*MethodDecl
	props        map[*Class][]*PropertyDecl
	events       map[*Class][]*EventDecl
	impls        map[*Class][]MethodImplDirective
	classesBySig map[*sig.TypeSig]*Class
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		interfaces:   map[*Class][]*sig.TypeSig{},
		nested:       map[*Class][]*Class{},
		fields:       map[*Class][]*FieldDecl{},
		methods:      map[*Class][]*MethodDecl{},
		props:        map[*Class][]*PropertyDecl{},
		events:       map[*Class][]*EventDecl{},
		impls:        map[*Class][]MethodImplDirective{},
		classesBySig: map[*sig.TypeSig]*Class{},
	}
}

func (r *fakeResolver) ResolveClass(s *sig.TypeSig) (*Class, error) { return r.classesBySig[s], nil }
func (r *fakeResolver) DeclaredInterfaces(c *Class) ([]*sig.TypeSig, error) {
	return r.interfaces[c], nil
}
func (r *fakeResolver) DeclaredNestedClasses(c *Class) ([]*Class, error)     { return r.nested[c], nil }
func (r *fakeResolver) DeclaredFields(c *Class) ([]*FieldDecl, error)        { return r.fields[c], nil }
func (r *fakeResolver) DeclaredMethods(c *Class) ([]*MethodDecl, error)      { return r.methods[c], nil }
func (r *fakeResolver) DeclaredProperties(c *Class) ([]*PropertyDecl, error) { return r.props[c], nil }
func (r *fakeResolver) DeclaredEvents(c *Class) ([]*EventDecl, error)        { return r.events[c], nil }
func (r *fakeResolver) MethodImpls(c *Class) ([]MethodImplDirective, error)  { return r.impls[c], nil }

// TestVTableOverride: class A { virtual M() }, class B : A { override M() }.
// B.vtable[slot_of_A_M].impl must equal B.M.
func TestVTableOverride(t *testing.T) {
	r := newFakeResolver()

	a := &Class{Name: "A"}
	r.methods[a] = []*MethodDecl{{Name: "M", IsVirtual: true, IsNewSlot: true}}
	r.interfaces[a] = nil
	if err := a.InitializeInterfaces(r); err != nil {
		t.Fatal(err)
	}
	if err := a.InitializeMethods(r); err != nil {
		t.Fatal(err)
	}
	if err := a.InitializeVTables(r); err != nil {
		t.Fatal(err)
	}
	if len(a.VTable) != 1 {
		t.Fatalf("A.vtable len = %d, want 1", len(a.VTable))
	}

	b := &Class{Name: "B", Parent: a}
	r.methods[b] = []*MethodDecl{{Name: "M", IsVirtual: true, IsNewSlot: false}}
	r.interfaces[b] = nil
	if err := b.InitializeInterfaces(r); err != nil {
		t.Fatal(err)
	}
	if err := b.InitializeMethods(r); err != nil {
		t.Fatal(err)
	}
	if err := b.InitializeVTables(r); err != nil {
		t.Fatal(err)
	}

	if len(b.VTable) != 1 {
		t.Fatalf("B.vtable len = %d, want 1 (override, not new slot)", len(b.VTable))
	}
	slotOfAM := a.Methods[0].Slot
	if b.VTable[slotOfAM].Impl != b.Methods[0] {
		t.Fatalf("B.vtable[slot_of_A_M].impl = %v, want B.M", b.VTable[slotOfAM].Impl)
	}
	if b.VTable[slotOfAM].Decl != a.Methods[0] {
		t.Fatalf("override must preserve decl, only replace impl")
	}
}

// TestVTableMonotonicity grounds testable property 3: C.vtable[0..P.count]
// equals P.vtable except where C declares an override.
func TestVTableMonotonicity(t *testing.T) {
	r := newFakeResolver()

	p := &Class{Name: "P"}
	r.methods[p] = []*MethodDecl{
		{Name: "F1", IsVirtual: true, IsNewSlot: true},
		{Name: "F2", IsVirtual: true, IsNewSlot: true},
	}
	if err := p.InitializeInterfaces(r); err != nil {
		t.Fatal(err)
	}
	if err := p.InitializeMethods(r); err != nil {
		t.Fatal(err)
	}
	if err := p.InitializeVTables(r); err != nil {
		t.Fatal(err)
	}

	c := &Class{Name: "C", Parent: p}
	r.methods[c] = []*MethodDecl{{Name: "F1", IsVirtual: true, IsNewSlot: false}}
	if err := c.InitializeInterfaces(r); err != nil {
		t.Fatal(err)
	}
	if err := c.InitializeMethods(r); err != nil {
		t.Fatal(err)
	}
	if err := c.InitializeVTables(r); err != nil {
		t.Fatal(err)
	}

	if c.VTable[0].Impl != c.Methods[0] {
		t.Fatalf("F1 should be overridden by C.F1")
	}
	if c.VTable[1].Decl != p.Methods[1] || c.VTable[1].Impl != p.Methods[1] {
		t.Fatalf("F2 should be inherited unchanged from P")
	}
}

func TestCctorRunsOnce(t *testing.T) {
	c := &Class{Name: "Static"}
	var runs int
	for i := 0; i < 5; i++ {
		if err := c.EnsureCctor(func() error { runs++; return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if runs != 1 {
		t.Fatalf("cctor ran %d times, want 1", runs)
	}
	if !c.CctorFinished() {
		t.Fatalf("expected CctorFinished to report true")
	}
}
