// Package vm implements the class loader, generic inflation, vtable
// construction, and method dispatch that sit atop the metadata cache
// (internal/sig) and layout engine (internal/layout).
package vm

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/leanclr/leanclr/internal/layout"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/sig"
)

// Phase gates, one bit per class-loader phase: an atomic integer of flag
// bits, each phase's gate a compare-and-set.
type phaseBit uint32

const (
	phaseSuperTypes phaseBit = 1 << iota
	phaseInterfaces
	phaseNestedClasses
	phaseFields
	phaseMethods
	phaseProperties
	phaseEvents
	phaseVTables
)

// Family classifies a class's ultimate ancestor, fixed during the
// super-types phase.
type Family int

const (
	FamilyOther Family = iota
	FamilyObject
	FamilyValueType
	FamilyEnum
	FamilyDelegate
	FamilyMulticastDelegate
	FamilyArray
	FamilyString
	FamilyByRefLike
)

// Class is the mutable descriptor for a loaded (or loading) type. Its
// zero value is a valid "stub" as created the moment a type-def is first
// touched; phases of initialization complete lazily and exactly once.
type Class struct {
	Image      uint32
	Token      uint32
	Parent     *Class
	Namespace  string
	Name       string
	ByVal      *sig.TypeSig
	ByRef      *sig.TypeSig
	ElementCls *Class // arrays/pointers/enums
	CastCls    *Class // nullable

	IsInterfaceFlag bool
	IsAbstract      bool
	IsSealed        bool
	IsValueTypeFlag bool
	IsGenericDef    bool
	ExplicitLayout  bool
	IsEnum          bool
	IsNullable      bool
	HasReferences   bool
	Blittable       bool

	Family Family

	ArrayRank int

	Interfaces  []*Class
	NestedClses []*Class
	Fields      []*Field
	Methods     []*Method
	Properties  []*Property
	Events      []*Event

	VTable                []VirtualInvokeData
	InterfaceVTableOffset []InterfaceOffset

	GenericContainer *GenericContainer
	GenericInst      *sig.GenericClass // non-nil for an inflated class

	instanceSize      uint32
	instanceAlignment uint32
	staticBlob        []byte

	phases    uint32 // atomic bitmap of phaseBit
	loading   uint32 // atomic bitmap of in-progress phases, cycle detection
	cctorOnce singleflight.Group
	cctorDone uint32 // atomic bool, release/acquire publication

	arrayOnce  sync.Once
	arrayClass *Class // lazily built SZ-array class with ElementCls == this

	mu sync.Mutex
}

// ArrayClassOf returns the class representing a single-dimension,
// zero-based array of elem, building and caching it on first use. An
// object.Array's header tags it with this class rather than elem itself,
// so array identity stays distinct from its element type.
func ArrayClassOf(elem *Class) *Class {
	elem.arrayOnce.Do(func() {
		elem.arrayClass = &Class{
			Namespace:  elem.Namespace,
			Name:       elem.Name + "[]",
			ElementCls: elem,
			Family:     FamilyArray,
			ArrayRank:  1,
			phases:     uint32(phaseSuperTypes | phaseInterfaces | phaseNestedClasses | phaseFields | phaseMethods | phaseProperties | phaseEvents | phaseVTables),
		}
	})
	return elem.arrayClass
}

// InstanceSize implements object.ClassRef.
func (c *Class) InstanceSize() uint32 { return c.instanceSize }

// InstanceAlignment returns c's fully laid-out instance alignment, valid
// once the fields phase has completed. A loader's layout.SizeResolver calls
// this (after forcing the phase) to size an embedding value-type field.
func (c *Class) InstanceAlignment() uint32 { return c.instanceAlignment }

// NewOpaqueClass builds a Class standing in for a type a Resolver cannot
// fully load — typically a cross-assembly reference whose defining image
// was never parsed. Every phase is pre-marked complete with empty
// Fields/Methods/Interfaces, the same technique ArrayClassOf uses for a
// synthetic array class.
func NewOpaqueClass(namespace, name string, family Family, isValueType bool) *Class {
	return &Class{
		Namespace:       namespace,
		Name:            name,
		Family:          family,
		IsValueTypeFlag: isValueType,
		phases:          uint32(phaseSuperTypes | phaseInterfaces | phaseNestedClasses | phaseFields | phaseMethods | phaseProperties | phaseEvents | phaseVTables),
	}
}

// IsValueType implements object.ClassRef.
func (c *Class) IsValueType() bool { return c.IsValueTypeFlag }

// GenericContainer is the declaration site of type parameters on a class
// or method.
type GenericContainer struct {
	ParamCount int
	IsMethod   bool
}

// VirtualInvokeData is the pair (declared-method, impl-method) occupying
// one vtable slot.
type VirtualInvokeData struct {
	Decl *Method
	Impl *Method
}

// InterfaceOffset is a (interface class, vtable base index) pair.
type InterfaceOffset struct {
	Iface *Class
	Base  int
}

// hasPhase reports whether phase has completed, with acquire semantics so
// a reader who observes the bit also observes every write the phase made.
func (c *Class) hasPhase(p phaseBit) bool {
	return atomic.LoadUint32(&c.phases)&uint32(p) != 0
}

// enterPhase atomically claims phase p for execution. It returns
// (alreadyDone=true) if another goroutine already completed it, or
// (cyclic=true) if p is already being executed by an ancestor frame on the
// same goroutine's call chain (re-entrant loading of the same class+phase).
func (c *Class) enterPhase(p phaseBit) (alreadyDone, cyclic bool) {
	if c.hasPhase(p) {
		return true, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasPhase(p) {
		return true, false
	}
	if atomic.LoadUint32(&c.loading)&uint32(p) != 0 {
		return false, true
	}
	atomicOr32(&c.loading, uint32(p))
	return false, false
}

// finishPhase publishes phase p as complete with release semantics.
func (c *Class) finishPhase(p phaseBit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	atomicAnd32(&c.loading, ^uint32(p))
	atomicOr32(&c.phases, uint32(p))
}

// clearLoading releases phase p's in-progress marker without marking it
// complete, used on failure paths where recovery is unsafe and the class
// becomes permanently unusable (the caller records that status itself).
func (c *Class) clearLoading(p phaseBit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	atomicAnd32(&c.loading, ^uint32(p))
}

// atomic.OrUint32Ptr/AndUint32Ptr are not in the standard library; these
// thin shims keep the call sites above readable while using the stdlib
// compare-and-swap loop underneath (sync/atomic has no bitwise-or/and
// primitive for uint32 as of this Go version).
func atomicOr32(addr *uint32, bits uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old|bits) {
			return
		}
	}
}

func atomicAnd32(addr *uint32, bits uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old&bits) {
			return
		}
	}
}

// Resolver is the subset of the image+loader world a Class needs to
// materialize a phase: resolving a parent/interface TypeSig to its Class,
// fetching a type-def's raw field/method/interface rows, etc. Implemented
// by Loader; declared here as the seam a single class's phase methods
// call through.
type Resolver interface {
	ResolveClass(sig *sig.TypeSig) (*Class, error)
	DeclaredInterfaces(c *Class) ([]*sig.TypeSig, error)
	DeclaredNestedClasses(c *Class) ([]*Class, error)
	DeclaredFields(c *Class) ([]*FieldDecl, error)
	DeclaredMethods(c *Class) ([]*MethodDecl, error)
	DeclaredProperties(c *Class) ([]*PropertyDecl, error)
	DeclaredEvents(c *Class) ([]*EventDecl, error)
	MethodImpls(c *Class) ([]MethodImplDirective, error)
}

// FieldDecl/MethodDecl/PropertyDecl/EventDecl/MethodImplDirective are raw,
// not-yet-resolved declarations the image reader hands the loader; the
// loader resolves their type signatures and wires back-pointers.
type FieldDecl struct {
	Name           string
	Type           *sig.TypeSig
	IsStatic       bool
	IsLiteral      bool
	ExplicitOffset uint32
	HasExplicit    bool
	Token          uint32
}

type MethodDecl struct {
	Name         string
	ReturnType   *sig.TypeSig
	ParamTypes   []*sig.TypeSig
	IsVirtual    bool
	IsNewSlot    bool
	IsStatic     bool
	IsAbstract   bool
	IsSealed     bool
	PInvoke      bool
	InternalCall bool
	RuntimeImpl  bool
	Token        uint32
}

type PropertyDecl struct {
	Name   string
	Getter *Method
	Setter *Method
}

type EventDecl struct {
	Name     string
	AddOn    *Method
	RemoveOn *Method
}

type MethodImplDirective struct {
	Decl *Method
	Impl *Method
}

// InitializeSuperTypes resolves c's parent class, setting its Family.
// Re-entrant loading of the same class+phase fails with TypeLoad — cycles
// are reported, not resolved.
func (c *Class) InitializeSuperTypes(r Resolver, parentSig *sig.TypeSig) error {
	done, cyclic := c.enterPhase(phaseSuperTypes)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic super-type resolution for %s.%s", c.Namespace, c.Name)
	}

	if parentSig != nil {
		parent, err := r.ResolveClass(parentSig)
		if err != nil {
			c.clearLoading(phaseSuperTypes)
			return rterror.Wrap(rterror.TypeLoad, err, "resolving parent of %s.%s", c.Namespace, c.Name)
		}
		c.Parent = parent
	}
	c.Family = classifyFamily(c)
	c.finishPhase(phaseSuperTypes)
	return nil
}

func classifyFamily(c *Class) Family {
	switch {
	case c.Parent == nil:
		return FamilyObject
	case c.IsValueTypeFlag && c.IsEnum:
		return FamilyEnum
	case c.IsValueTypeFlag:
		return FamilyValueType
	case c.Namespace == "System" && c.Name == "MulticastDelegate":
		return FamilyMulticastDelegate
	case c.Namespace == "System" && c.Name == "Delegate":
		return FamilyDelegate
	case c.Namespace == "System" && c.Name == "Array":
		return FamilyArray
	case c.Namespace == "System" && c.Name == "String":
		return FamilyString
	default:
		return FamilyOther
	}
}

// InitializeInterfaces resolves c's declared interface list, deduplicates
// it, and ensures each interface has itself completed the super-types
// phase. Independent interfaces are resolved concurrently via errgroup,
// matching the requirement only that the phase complete as a
// whole — the individual resolutions have no ordering dependency on each
// other.
func (c *Class) InitializeInterfaces(r Resolver) error {
	done, cyclic := c.enterPhase(phaseInterfaces)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic interface resolution for %s.%s", c.Namespace, c.Name)
	}

	sigs, err := r.DeclaredInterfaces(c)
	if err != nil {
		c.clearLoading(phaseInterfaces)
		return rterror.Wrap(rterror.TypeLoad, err, "listing interfaces of %s.%s", c.Namespace, c.Name)
	}

	resolved := make([]*Class, len(sigs))
	var g errgroup.Group
	for i, s := range sigs {
		i, s := i, s
		g.Go(func() error {
			ic, err := r.ResolveClass(s)
			if err != nil {
				return err
			}
			if _, _, cerr := ic.ensureSuperTypesOnly(r); cerr != nil {
				return cerr
			}
			resolved[i] = ic
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.clearLoading(phaseInterfaces)
		return rterror.Wrap(rterror.TypeLoad, err, "resolving interfaces of %s.%s", c.Namespace, c.Name)
	}

	seen := make(map[*Class]bool, len(resolved))
	deduped := resolved[:0]
	for _, ic := range resolved {
		if ic == nil || seen[ic] {
			continue
		}
		seen[ic] = true
		deduped = append(deduped, ic)
	}
	c.Interfaces = deduped
	c.finishPhase(phaseInterfaces)
	return nil
}

// ensureSuperTypesOnly is a narrow helper used while resolving another
// class's interface list: it does not recurse into that interface's own
// interface phase, avoiding unbounded fan-out during a single dedupe pass.
func (c *Class) ensureSuperTypesOnly(r Resolver) (bool, bool, error) {
	if c.hasPhase(phaseSuperTypes) {
		return true, false, nil
	}
	return false, false, c.InitializeSuperTypes(r, nil)
}

// InitializeNestedClasses populates c's nested-type list.
func (c *Class) InitializeNestedClasses(r Resolver) error {
	done, cyclic := c.enterPhase(phaseNestedClasses)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic nested-class resolution for %s.%s", c.Namespace, c.Name)
	}
	nested, err := r.DeclaredNestedClasses(c)
	if err != nil {
		c.clearLoading(phaseNestedClasses)
		return rterror.Wrap(rterror.TypeLoad, err, "listing nested classes of %s.%s", c.Namespace, c.Name)
	}
	c.NestedClses = nested
	c.finishPhase(phaseNestedClasses)
	return nil
}

// InitializeFields builds c's field array, computes layout via
// internal/layout, allocates the static blob if needed, and computes
// HasReferences by scanning the resulting layout.
func (c *Class) InitializeFields(r Resolver, resolve layout.SizeResolver) error {
	done, cyclic := c.enterPhase(phaseFields)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic field layout for %s.%s", c.Namespace, c.Name)
	}

	decls, err := r.DeclaredFields(c)
	if err != nil {
		c.clearLoading(phaseFields)
		return rterror.Wrap(rterror.TypeLoad, err, "listing fields of %s.%s", c.Namespace, c.Name)
	}

	var instanceLayoutFields []*layout.Field
	var staticSize uint32
	fields := make([]*Field, 0, len(decls))
	for _, d := range decls {
		f := &Field{Owner: c, Name: d.Name, Type: d.Type, IsStatic: d.IsStatic, IsLiteral: d.IsLiteral, Token: d.Token}
		fields = append(fields, f)
		if d.IsStatic || d.IsLiteral {
			if d.IsLiteral {
				continue // literal fields hold no offset, read from the constant heap
			}
			sz, _, ferr := layout.FieldSizeAndAlignment(d.Type, resolve)
			if ferr != nil {
				c.clearLoading(phaseFields)
				return ferr
			}
			f.Offset = staticSize
			staticSize += sz
			continue
		}
		instanceLayoutFields = append(instanceLayoutFields, &layout.Field{
			Type: d.Type, ExplicitOffset: d.ExplicitOffset, HasExplicit: d.HasExplicit,
		})
	}

	parentSize, parentAlign := uint32(0), uint32(1)
	if c.Parent != nil {
		parentSize, parentAlign = c.Parent.instanceSize, c.Parent.instanceAlignment
	}

	var size, align uint32
	if c.ExplicitLayout {
		size, align, err = layout.ComputeExplicitLayout(instanceLayoutFields, 0, resolve)
	} else {
		size, align, err = layout.ComputeSequentialLayout(instanceLayoutFields, parentSize, parentAlign, 0, resolve)
	}
	if err != nil {
		c.clearLoading(phaseFields)
		return err
	}

	li := 0
	for _, f := range fields {
		if f.IsStatic || f.IsLiteral {
			continue
		}
		lf := instanceLayoutFields[li]
		f.Offset, f.Size, f.Alignment = lf.Offset, lf.Size, lf.Alignment
		if fieldHoldsReference(f.Type) {
			c.HasReferences = true
		}
		li++
	}

	c.Fields = fields
	c.instanceSize, c.instanceAlignment = size, align
	if staticSize > 0 {
		c.staticBlob = make([]byte, staticSize)
	}
	c.finishPhase(phaseFields)
	return nil
}

func fieldHoldsReference(t *sig.TypeSig) bool {
	if t == nil || t.ByRef {
		return true
	}
	switch t.Kind {
	case sig.Class, sig.String, sig.Object, sig.SZArray, sig.Array, sig.GenericInstKind:
		return true
	default:
		return false
	}
}

// InitializeMethods builds c's method array, determining each method's
// invoker kind and per-argument descriptors.
func (c *Class) InitializeMethods(r Resolver) error {
	done, cyclic := c.enterPhase(phaseMethods)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic method resolution for %s.%s", c.Namespace, c.Name)
	}

	decls, err := r.DeclaredMethods(c)
	if err != nil {
		c.clearLoading(phaseMethods)
		return rterror.Wrap(rterror.TypeLoad, err, "listing methods of %s.%s", c.Namespace, c.Name)
	}

	methods := make([]*Method, 0, len(decls))
	for _, d := range decls {
		m := &Method{
			Owner: c, Name: d.Name, ReturnType: d.ReturnType, ParamTypes: d.ParamTypes,
			IsVirtual: d.IsVirtual, IsNewSlot: d.IsNewSlot, IsStatic: d.IsStatic,
			IsAbstract: d.IsAbstract, IsSealed: d.IsSealed, Token: d.Token,
			Slot: -1,
		}
		m.InvokerKind = classifyInvoker(d)
		m.ArgDescriptors = buildArgDescriptors(d.ParamTypes, d.IsStatic)
		methods = append(methods, m)
	}
	c.Methods = methods
	c.finishPhase(phaseMethods)
	return nil
}

// InvokerKind is the method body's execution strategy, chosen once at
// method-initialization time.
type InvokerKind int

const (
	InvokerInterpreter InvokerKind = iota
	InvokerInterpreterVirtualAdjustThunk
	InvokerInternalCall
	InvokerIntrinsic
	InvokerPInvoke
	InvokerRuntimeImpl
	InvokerNewObj
	InvokerNotImplemented
)

func classifyInvoker(d *MethodDecl) InvokerKind {
	switch {
	case d.PInvoke:
		return InvokerPInvoke
	case d.InternalCall:
		return InvokerInternalCall
	case d.RuntimeImpl:
		return InvokerRuntimeImpl
	case d.IsAbstract:
		return InvokerNotImplemented
	default:
		return InvokerInterpreter
	}
}

// ArgDescriptor records how one parameter maps to evaluation-stack
// storage: its reduced stack kind and how many stack-object units it
// occupies.
type ArgDescriptor struct {
	Kind     sig.Kind
	StackObj uint32 // stack-object units; stackObjSize reports 1 for every parameter, value types included
}

func buildArgDescriptors(params []*sig.TypeSig, isStatic bool) []ArgDescriptor {
	descs := make([]ArgDescriptor, 0, len(params)+1)
	for _, p := range params {
		descs = append(descs, ArgDescriptor{Kind: reduceKind(p), StackObj: stackObjSize(p)})
	}
	return descs
}

func reduceKind(t *sig.TypeSig) sig.Kind {
	if t == nil {
		return sig.Void
	}
	if t.ByRef {
		return sig.I // managed pointer reduces to native int width in eval-stack kind terms
	}
	switch t.Kind {
	case sig.I1, sig.U1, sig.I2, sig.U2, sig.I4, sig.U4, sig.Char, sig.Boolean:
		return sig.I4
	case sig.I8, sig.U8:
		return sig.I8
	case sig.R4:
		return sig.R4
	case sig.R8:
		return sig.R8
	case sig.Class, sig.String, sig.Object, sig.SZArray, sig.Array, sig.Ptr, sig.FnPtr, sig.I, sig.U:
		return sig.I
	default:
		return t.Kind
	}
}

func stackObjSize(t *sig.TypeSig) uint32 {
	if t == nil {
		return 0
	}
	if t.ByRef || t.Kind != sig.ValueType {
		return 1
	}
	return 1 // a by-value value type also counts as one unit; its layout size is not consulted
}

// InitializeProperties/InitializeEvents populate reflective metadata
// arrays and record back-pointers to their accessor methods.
func (c *Class) InitializeProperties(r Resolver) error {
	done, cyclic := c.enterPhase(phaseProperties)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic property resolution for %s.%s", c.Namespace, c.Name)
	}
	decls, err := r.DeclaredProperties(c)
	if err != nil {
		c.clearLoading(phaseProperties)
		return rterror.Wrap(rterror.TypeLoad, err, "listing properties of %s.%s", c.Namespace, c.Name)
	}
	props := make([]*Property, 0, len(decls))
	for _, d := range decls {
		props = append(props, &Property{Name: d.Name, Getter: d.Getter, Setter: d.Setter})
	}
	c.Properties = props
	c.finishPhase(phaseProperties)
	return nil
}

func (c *Class) InitializeEvents(r Resolver) error {
	done, cyclic := c.enterPhase(phaseEvents)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic event resolution for %s.%s", c.Namespace, c.Name)
	}
	decls, err := r.DeclaredEvents(c)
	if err != nil {
		c.clearLoading(phaseEvents)
		return rterror.Wrap(rterror.TypeLoad, err, "listing events of %s.%s", c.Namespace, c.Name)
	}
	evts := make([]*Event, 0, len(decls))
	for _, d := range decls {
		evts = append(evts, &Event{Name: d.Name, AddOn: d.AddOn, RemoveOn: d.RemoveOn})
	}
	c.Events = evts
	c.finishPhase(phaseEvents)
	return nil
}

// Property/Event are the reflective metadata records populated above.
type Property struct {
	Name   string
	Getter *Method
	Setter *Method
}

type Event struct {
	Name     string
	AddOn    *Method
	RemoveOn *Method
}

// Field is the loaded descriptor of one field of a Class.
type Field struct {
	Owner     *Class
	Name      string
	Type      *sig.TypeSig
	IsStatic  bool
	IsLiteral bool
	Offset    uint32
	Size      uint32
	Alignment uint32
	Token     uint32
}

// IsThreadStatic always reports false: thread-static storage is wired off
// rather than guessed at, since no caller requires true thread-static
// semantics yet.
func (f *Field) IsThreadStatic() bool { return false }

// StaticBytes returns c's static storage blob, backing ldsfld/stsfld for
// c's non-reference, non-literal static fields.
func (c *Class) StaticBytes() []byte { return c.staticBlob }

// Method is the loaded descriptor of one method of a Class.
type Method struct {
	Owner          *Class
	Name           string
	ReturnType     *sig.TypeSig
	ParamTypes     []*sig.TypeSig
	IsVirtual      bool
	IsNewSlot      bool
	IsStatic       bool
	IsAbstract     bool
	IsSealed       bool
	Slot           int // -1 until the vtable phase assigns it
	InvokerKind    InvokerKind
	ArgDescriptors []ArgDescriptor
	Token          uint32

	GenericContainer *GenericContainer
	GenericInst      *sig.GenericMethod // non-nil for an inflated method

	// InterpBody/Invoker/VirtualInvoker are resolved lazily by
	// internal/interp/internal/icall on first invocation; declared as
	// interface{} here to avoid an import cycle (interp depends on vm,
	// not the reverse).
	InterpBody     interface{}
	Invoker        interface{}
	VirtualInvoker interface{}
}

// SignatureEquals reports whether m and other have the same name and
// structurally equal parameter/return signatures, treating generic
// parameters positionally within their containing class/method, per
// .3 step 2's override-matching rule.
func (m *Method) SignatureEquals(other *Method) bool {
	if m.Name != other.Name || len(m.ParamTypes) != len(other.ParamTypes) {
		return false
	}
	if !sameSig(m.ReturnType, other.ReturnType) {
		return false
	}
	for i := range m.ParamTypes {
		if !sameSig(m.ParamTypes[i], other.ParamTypes[i]) {
			return false
		}
	}
	return true
}

func sameSig(a, b *sig.TypeSig) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	// Canonical, non-generic-parameter signatures are pointer-identical by
	// construction (internal/sig's invariant); Var/MVar compare
	// positionally since they are meaningful only within their container.
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == sig.Var || a.Kind == sig.MVar {
		return a.ParamIndex == b.ParamIndex
	}
	return false
}
