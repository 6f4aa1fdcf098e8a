// Package loader bridges internal/image's parsed PE/CLI metadata tables
// into internal/vm's class graph: it implements vm.Resolver, turning
// TypeDef/TypeRef/Field/MethodDef rows and their signature blobs into the
// Class/Field/Method descriptors the interpreter dispatches against.
package loader

import (
	"sync"

	"github.com/google/uuid"

	"github.com/leanclr/leanclr/internal/image"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/sig"
	"github.com/leanclr/leanclr/internal/vm"
)

// Loader implements vm.Resolver against one parsed image's metadata tables.
// A token is encoded the same way ECMA-335 encodes metadata tokens: the
// table index (matching internal/image's table constants) in the high
// byte, the 1-based row number in the low three bytes.
type Loader struct {
	img     *image.File
	imageID uint32
	cache   *sig.Cache

	typeDefs     []image.TypeDefTableRow
	typeRefs     []image.TypeRefTableRow
	typeSpecs    []image.TypeSpecTableRow
	fields       []image.FieldTableRow
	methods      []image.MethodDefTableRow
	ifaces       []image.InterfaceImplTableRow
	nested       []image.NestedClassTableRow
	fieldLayouts []image.FieldLayoutTableRow
	modules      []image.ModuleTableRow
	assemblies   []image.AssemblyTableRow
	assemblyRefs []image.AssemblyRefTableRow

	fieldLayoutByRow map[uint32]uint32

	strings []byte
	blobs   []byte
	guids   []byte

	mu       sync.Mutex
	classes  map[uint32]*vm.Class
	external map[externalKey]*vm.Class
}

type externalKey struct{ namespace, name string }

// tokenFor packs a table index and 1-based row number into an ECMA-335
// metadata token.
func tokenFor(table int, row uint32) uint32 { return uint32(table)<<24 | row }

// tokenRow unpacks a token built by tokenFor.
func tokenRow(token uint32) (table int, row uint32) {
	return int(token >> 24), token & 0x00ffffff
}

// decodeTypeDefOrRefRaw decodes a raw (non-blob-compressed) TypeDefOrRef
// coded index, as used directly by TypeDefTableRow.Extends and
// InterfaceImplTableRow.Interface: the low 2 bits select the table
// (0=TypeDef, 1=TypeRef, 2=TypeSpec), the remaining bits are the 1-based
// row index.
func decodeTypeDefOrRefRaw(v uint32) (table int, row uint32) {
	row = v >> 2
	switch v & 0x3 {
	case 0:
		return image.TypeDef, row
	case 1:
		return image.TypeRef, row
	default:
		return image.TypeSpec, row
	}
}

// tableRows extracts idx's typed row slice from img's metadata tables, or
// nil if the table is absent (optimized metadata omits several tables
// entirely).
func tableRows[T any](img *image.File, idx int) []T {
	t := img.CLR.MetadataTables[idx]
	if t == nil {
		return nil
	}
	rows, _ := t.Content.([]T)
	return rows
}

// NewLoader indexes img's metadata tables for resolution. imageID
// distinguishes this image's TypeIDs from any other image sharing cache;
// callers loading a single image may pass any stable value (0 is fine).
func NewLoader(img *image.File, imageID uint32, cache *sig.Cache) *Loader {
	l := &Loader{
		img:          img,
		imageID:      imageID,
		cache:        cache,
		typeDefs:     tableRows[image.TypeDefTableRow](img, image.TypeDef),
		typeRefs:     tableRows[image.TypeRefTableRow](img, image.TypeRef),
		typeSpecs:    tableRows[image.TypeSpecTableRow](img, image.TypeSpec),
		fields:       tableRows[image.FieldTableRow](img, image.Field),
		methods:      tableRows[image.MethodDefTableRow](img, image.MethodDef),
		ifaces:       tableRows[image.InterfaceImplTableRow](img, image.InterfaceImpl),
		nested:       tableRows[image.NestedClassTableRow](img, image.NestedClass),
		fieldLayouts: tableRows[image.FieldLayoutTableRow](img, image.FieldLayout),
		modules:      tableRows[image.ModuleTableRow](img, image.Module),
		assemblies:   tableRows[image.AssemblyTableRow](img, image.Assembly),
		assemblyRefs: tableRows[image.AssemblyRefTableRow](img, image.AssemblyRef),
		strings:      img.CLR.MetadataStreams["#Strings"],
		blobs:        img.CLR.MetadataStreams["#Blob"],
		guids:        img.CLR.MetadataStreams["#GUID"],
		classes:      make(map[uint32]*vm.Class),
		external:     make(map[externalKey]*vm.Class),
	}
	l.fieldLayoutByRow = make(map[uint32]uint32, len(l.fieldLayouts))
	for _, fl := range l.fieldLayouts {
		l.fieldLayoutByRow[fl.Field] = fl.Offset
	}
	return l
}

func (l *Loader) string(idx uint32) string {
	if idx == 0 || l.strings == nil {
		return ""
	}
	return string(l.img.GetStringFromData(idx, l.strings))
}

// blob resolves a #Blob heap index to the bytes of its length-prefixed
// entry (ECMA-335 §II.24.2.4: the entry itself begins with a compressed
// unsigned length).
func (l *Loader) blob(idx uint32) []byte {
	if idx == 0 || l.blobs == nil || int(idx) >= len(l.blobs) {
		return nil
	}
	r := &sigReader{b: l.blobs[idx:]}
	n, err := r.compressedUint()
	if err != nil {
		return nil
	}
	start := idx + uint32(r.pos)
	end := start + n
	if int(end) > len(l.blobs) || end < start {
		return nil
	}
	return l.blobs[start:end]
}

// guid resolves a 1-based #GUID heap index to a uuid.UUID. The heap stores
// each 16-byte GUID little-endian in its Data1/Data2/Data3 fields; uuid.UUID
// is big-endian (RFC 4122) byte order, so those fields are swapped on read.
func (l *Loader) guid(idx uint32) uuid.UUID {
	if idx == 0 || l.guids == nil {
		return uuid.UUID{}
	}
	off := (idx - 1) * 16
	if int(off)+16 > len(l.guids) {
		return uuid.UUID{}
	}
	b := l.guids[off : off+16]
	var g uuid.UUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:16])
	return g
}

// typeNameOf reads a TypeDef or TypeRef row's namespace/name directly from
// the string heap, without resolving the row to a Class. Used to classify
// a type's Extends target as System.ValueType/System.Enum without forcing
// that target's own load.
func (l *Loader) typeNameOf(table int, row uint32) (namespace, name string, err error) {
	switch table {
	case image.TypeRef:
		if row == 0 || int(row) > len(l.typeRefs) {
			return "", "", rterror.New(rterror.BadImageFormat, "TypeRef row %d out of range", row)
		}
		tr := l.typeRefs[row-1]
		return l.string(tr.TypeNamespace), l.string(tr.TypeName), nil
	case image.TypeDef:
		if row == 0 || int(row) > len(l.typeDefs) {
			return "", "", rterror.New(rterror.BadImageFormat, "TypeDef row %d out of range", row)
		}
		td := l.typeDefs[row-1]
		return l.string(td.TypeNamespace), l.string(td.TypeName), nil
	default:
		return "", "", rterror.New(rterror.BadImageFormat, "table %d cannot name a base type", table)
	}
}

// typeDefBaseKind reports whether a TypeDef row's Extends target is
// System.ValueType or System.Enum. A value type can never itself be
// derived from, so a single hop is exactly ECMA-335's rule, not an
// approximation of a deeper walk.
func (l *Loader) typeDefBaseKind(row uint32) (isValueType, isEnum bool, err error) {
	td := l.typeDefs[row-1]
	if td.Extends == 0 {
		return false, false, nil
	}
	table, erow := decodeTypeDefOrRefRaw(td.Extends)
	ns, name, err := l.typeNameOf(table, erow)
	if err != nil {
		return false, false, err
	}
	if ns != "System" {
		return false, false, nil
	}
	switch name {
	case "Enum":
		return true, true, nil
	case "ValueType":
		return true, false, nil
	default:
		return false, false, nil
	}
}

// typeSigForCoded resolves a decoded TypeDefOrRefOrSpec coded index to a
// canonical *sig.TypeSig, serving both the in-blob signature decoder
// (sigblob.go) and the raw-field coded indices used by Extends/Interface.
func (l *Loader) typeSigForCoded(table int, row uint32) (*sig.TypeSig, error) {
	switch table {
	case image.TypeDef:
		return l.typeDefSig(row)
	case image.TypeRef:
		return l.typeRefSig(row)
	case image.TypeSpec:
		return l.typeSpecSig(row)
	default:
		return nil, rterror.New(rterror.BadImageFormat, "unexpected coded table %d", table)
	}
}

func (l *Loader) typeDefSig(row uint32) (*sig.TypeSig, error) {
	if row == 0 || int(row) > len(l.typeDefs) {
		return nil, rterror.New(rterror.BadImageFormat, "TypeDef row %d out of range", row)
	}
	vt, _, err := l.typeDefBaseKind(row)
	if err != nil {
		return nil, err
	}
	return l.cache.GetPooledClass(sig.TypeID{ImageID: l.imageID, Token: tokenFor(image.TypeDef, row)}, vt), nil
}

// typeRefSig resolves a TypeRef row to a TypeSig. Without the defining
// assembly loaded, this loader cannot tell a struct TypeRef from a class
// TypeRef; every external type reference is therefore treated as a
// reference type (see wellKnownOrExternalClass).
func (l *Loader) typeRefSig(row uint32) (*sig.TypeSig, error) {
	if row == 0 || int(row) > len(l.typeRefs) {
		return nil, rterror.New(rterror.BadImageFormat, "TypeRef row %d out of range", row)
	}
	return l.cache.GetPooledClass(sig.TypeID{ImageID: l.imageID, Token: tokenFor(image.TypeRef, row)}, false), nil
}

func (l *Loader) typeSpecSig(row uint32) (*sig.TypeSig, error) {
	if row == 0 || int(row) > len(l.typeSpecs) {
		return nil, rterror.New(rterror.BadImageFormat, "TypeSpec row %d out of range", row)
	}
	r := &sigReader{b: l.blob(l.typeSpecs[row-1].Signature)}
	return r.decodeType(l.cache, l.typeSigForCoded)
}

// externalFamily classifies a cross-assembly type reference's Family from
// its namespace-qualified name alone, mirroring classifyFamily's own
// name-based special cases for the handful of types the runtime treats
// specially.
func externalFamily(namespace, name string) vm.Family {
	if namespace != "System" {
		return vm.FamilyOther
	}
	switch name {
	case "Array":
		return vm.FamilyArray
	case "String":
		return vm.FamilyString
	case "Delegate":
		return vm.FamilyDelegate
	case "MulticastDelegate":
		return vm.FamilyMulticastDelegate
	default:
		return vm.FamilyOther
	}
}

// wellKnownOrExternalClass returns the (cached) opaque Class standing in
// for a type this loader cannot load the members of, named only by its
// namespace and name.
func (l *Loader) wellKnownOrExternalClass(namespace, name string) *vm.Class {
	key := externalKey{namespace, name}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.external[key]; ok {
		return c
	}
	c := vm.NewOpaqueClass(namespace, name, externalFamily(namespace, name), false)
	l.external[key] = c
	return c
}

func (l *Loader) classForTypeRefRow(row uint32) (*vm.Class, error) {
	if row == 0 || int(row) > len(l.typeRefs) {
		return nil, rterror.New(rterror.BadImageFormat, "TypeRef row %d out of range", row)
	}
	tr := l.typeRefs[row-1]
	return l.wellKnownOrExternalClass(l.string(tr.TypeNamespace), l.string(tr.TypeName)), nil
}

// classForTypeDefRow returns the (cached) Class stub for a TypeDef row,
// building it from the row's Flags/TypeName/TypeNamespace/Extends on first
// access. It does not drive any loading phase; callers that need a fully
// loaded class call load as well (see LoadAll).
func (l *Loader) classForTypeDefRow(row uint32) (*vm.Class, error) {
	if row == 0 || int(row) > len(l.typeDefs) {
		return nil, rterror.New(rterror.BadImageFormat, "TypeDef row %d out of range", row)
	}
	token := tokenFor(image.TypeDef, row)

	l.mu.Lock()
	if c, ok := l.classes[token]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	td := l.typeDefs[row-1]
	vt, isEnum, err := l.typeDefBaseKind(row)
	if err != nil {
		return nil, err
	}
	c := &vm.Class{
		Image:           l.imageID,
		Token:           token,
		Namespace:       l.string(td.TypeNamespace),
		Name:            l.string(td.TypeName),
		IsInterfaceFlag: td.Flags&tdInterface != 0,
		IsAbstract:      td.Flags&tdAbstract != 0,
		IsSealed:        td.Flags&tdSealed != 0,
		IsValueTypeFlag: vt,
		IsEnum:          isEnum,
		ExplicitLayout:  td.Flags&tdLayoutMask == tdExplicitLayout,
	}
	c.ByVal = l.cache.GetPooledClass(sig.TypeID{ImageID: l.imageID, Token: token}, vt)
	if !vt {
		c.ByRef = c.ByVal
	}

	l.mu.Lock()
	if existing, ok := l.classes[token]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.classes[token] = c
	l.mu.Unlock()
	return c, nil
}

// ResolveClass implements vm.Resolver.
func (l *Loader) ResolveClass(ts *sig.TypeSig) (*vm.Class, error) {
	if ts == nil {
		return nil, rterror.New(rterror.TypeLoad, "nil type signature")
	}
	switch ts.Kind {
	case sig.Class, sig.ValueType:
		if ts.Def.ImageID != l.imageID {
			return nil, rterror.New(rterror.TypeLoad, "cross-image type resolution not supported (image %d)", ts.Def.ImageID)
		}
		table, row := tokenRow(ts.Def.Token)
		switch table {
		case image.TypeDef:
			return l.classForTypeDefRow(row)
		case image.TypeRef:
			return l.classForTypeRefRow(row)
		default:
			return nil, rterror.New(rterror.TypeLoad, "cannot resolve coded table %d to a class", table)
		}
	default:
		return nil, rterror.New(rterror.TypeLoad, "cannot resolve non-class type signature kind %v", ts.Kind)
	}
}

func (l *Loader) fieldRange(row uint32) (lo, hi uint32) {
	lo = l.typeDefs[row-1].FieldList
	if int(row) < len(l.typeDefs) {
		hi = l.typeDefs[row].FieldList
	} else {
		hi = uint32(len(l.fields)) + 1
	}
	return lo, hi
}

func (l *Loader) methodRange(row uint32) (lo, hi uint32) {
	lo = l.typeDefs[row-1].MethodList
	if int(row) < len(l.typeDefs) {
		hi = l.typeDefs[row].MethodList
	} else {
		hi = uint32(len(l.methods)) + 1
	}
	return lo, hi
}

// DeclaredInterfaces implements vm.Resolver.
func (l *Loader) DeclaredInterfaces(c *vm.Class) ([]*sig.TypeSig, error) {
	table, row := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil, nil
	}
	var out []*sig.TypeSig
	for _, ii := range l.ifaces {
		if ii.Class != row {
			continue
		}
		itable, irow := decodeTypeDefOrRefRaw(ii.Interface)
		ts, err := l.typeSigForCoded(itable, irow)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}

// DeclaredNestedClasses implements vm.Resolver.
func (l *Loader) DeclaredNestedClasses(c *vm.Class) ([]*vm.Class, error) {
	table, row := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil, nil
	}
	var out []*vm.Class
	for _, nc := range l.nested {
		if nc.EnclosingClass != row {
			continue
		}
		inner, err := l.classForTypeDefRow(nc.NestedClass)
		if err != nil {
			return nil, err
		}
		out = append(out, inner)
	}
	return out, nil
}

// DeclaredFields implements vm.Resolver.
func (l *Loader) DeclaredFields(c *vm.Class) ([]*vm.FieldDecl, error) {
	table, row := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil, nil
	}
	lo, hi := l.fieldRange(row)
	decls := make([]*vm.FieldDecl, 0, hi-lo)
	for fr := lo; fr < hi; fr++ {
		if fr == 0 || int(fr) > len(l.fields) {
			continue // a zero FieldList means "no fields owned", not row 0
		}
		fd := l.fields[fr-1]
		ft, err := decodeFieldSignature(l.cache, l.blob(fd.Signature), l.typeSigForCoded)
		if err != nil {
			return nil, err
		}
		off, has := l.fieldLayoutByRow[fr]
		decls = append(decls, &vm.FieldDecl{
			Name:           l.string(fd.Name),
			Type:           ft,
			IsStatic:       fd.Flags&faStatic != 0,
			IsLiteral:      fd.Flags&faLiteral != 0,
			ExplicitOffset: off,
			HasExplicit:    has,
			Token:          tokenFor(image.Field, fr),
		})
	}
	return decls, nil
}

// DeclaredMethods implements vm.Resolver.
func (l *Loader) DeclaredMethods(c *vm.Class) ([]*vm.MethodDecl, error) {
	table, row := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil, nil
	}
	lo, hi := l.methodRange(row)
	decls := make([]*vm.MethodDecl, 0, hi-lo)
	for mr := lo; mr < hi; mr++ {
		if mr == 0 || int(mr) > len(l.methods) {
			continue
		}
		md := l.methods[mr-1]
		ms, err := decodeMethodSignature(l.cache, l.blob(md.Signature), l.typeSigForCoded)
		if err != nil {
			return nil, err
		}
		decls = append(decls, &vm.MethodDecl{
			Name:         l.string(md.Name),
			ReturnType:   ms.ReturnType,
			ParamTypes:   ms.ParamTypes,
			IsVirtual:    md.Flags&maVirtual != 0,
			IsNewSlot:    md.Flags&maNewSlot != 0,
			IsStatic:     md.Flags&maStatic != 0,
			IsAbstract:   md.Flags&maAbstract != 0,
			IsSealed:     md.Flags&maFinal != 0,
			PInvoke:      md.Flags&maPinvokeImpl != 0,
			InternalCall: md.ImplFlags&miInternalCall != 0,
			RuntimeImpl:  md.ImplFlags&miCodeTypeMask == miRuntime,
			Token:        tokenFor(image.MethodDef, mr),
		})
	}
	return decls, nil
}

// DeclaredProperties/DeclaredEvents/MethodImpls implement vm.Resolver.
// PropertyMap/EventMap/MethodSemantics/MethodImpl table joins are not
// wired yet; every class reports none of these rather than guessing at
// them from method names.
func (l *Loader) DeclaredProperties(c *vm.Class) ([]*vm.PropertyDecl, error) { return nil, nil }
func (l *Loader) DeclaredEvents(c *vm.Class) ([]*vm.EventDecl, error)        { return nil, nil }
func (l *Loader) MethodImpls(c *vm.Class) ([]vm.MethodImplDirective, error)  { return nil, nil }

// sizeResolver is the layout.SizeResolver this loader's InitializeFields
// calls use: resolve the value type's Class and force its own fields phase
// (recursively, through load), then report its laid-out size/alignment.
func (l *Loader) sizeResolver(vt *sig.TypeSig) (uint32, uint32, error) {
	cls, err := l.ResolveClass(vt)
	if err != nil {
		return 0, 0, err
	}
	if err := l.load(cls); err != nil {
		return 0, 0, err
	}
	return cls.InstanceSize(), cls.InstanceAlignment(), nil
}

// parentSig computes a TypeDef-backed class's parent TypeSig from its raw
// Extends field, for the InitializeSuperTypes call load drives. Opaque
// (non-TypeDef) classes have no loader-driven parent; they arrive already
// fully initialized.
func (l *Loader) parentSig(c *vm.Class) (*sig.TypeSig, error) {
	table, row := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil, nil
	}
	td := l.typeDefs[row-1]
	if td.Extends == 0 {
		return nil, nil
	}
	etable, erow := decodeTypeDefOrRefRaw(td.Extends)
	return l.typeSigForCoded(etable, erow)
}

// load drives a TypeDef-backed class through every initialization phase in
// order (C1 metadata rows → C3 loaded class graph). Each phase is itself
// idempotent and cycle-checked (internal/vm/class.go's enterPhase), so
// calling load on an already-loaded or currently-loading class is safe.
func (l *Loader) load(c *vm.Class) error {
	table, _ := tokenRow(c.Token)
	if table != image.TypeDef {
		return nil // opaque/external classes arrive fully initialized
	}
	parent, err := l.parentSig(c)
	if err != nil {
		return err
	}
	if err := c.InitializeSuperTypes(l, parent); err != nil {
		return err
	}
	if err := c.InitializeInterfaces(l); err != nil {
		return err
	}
	if err := c.InitializeNestedClasses(l); err != nil {
		return err
	}
	if err := c.InitializeFields(l, l.sizeResolver); err != nil {
		return err
	}
	if err := c.InitializeMethods(l); err != nil {
		return err
	}
	if err := c.InitializeProperties(l); err != nil {
		return err
	}
	if err := c.InitializeEvents(l); err != nil {
		return err
	}
	return nil
}

// LoadAll drives every TypeDef row in the image through every
// initialization phase, returning the resulting Class graph in TypeDef
// table order. This is the loader's C1→C3 entry point: nothing upstream of
// it ever calls a Class's Initialize* methods directly.
func (l *Loader) LoadAll() ([]*vm.Class, error) {
	classes := make([]*vm.Class, 0, len(l.typeDefs))
	for row := uint32(1); row <= uint32(len(l.typeDefs)); row++ {
		c, err := l.classForTypeDefRow(row)
		if err != nil {
			return nil, err
		}
		if err := l.load(c); err != nil {
			return nil, rterror.Wrap(rterror.TypeLoad, err, "loading %s.%s", c.Namespace, c.Name)
		}
		classes = append(classes, c)
	}
	return classes, nil
}

// FindClass looks up an already-loaded class by namespace and name among
// the TypeDef rows this loader indexed, without forcing any phase that
// LoadAll hasn't already run.
func (l *Loader) FindClass(namespace, name string) *vm.Class {
	for row := uint32(1); row <= uint32(len(l.typeDefs)); row++ {
		td := l.typeDefs[row-1]
		if l.string(td.TypeNamespace) == namespace && l.string(td.TypeName) == name {
			c, _ := l.classForTypeDefRow(row)
			return c
		}
	}
	return nil
}

// ModuleIdentity returns the loaded image's module-version id: the GUID
// heap's Mvid entry if the module table carries one, or a freshly stamped
// synthetic id otherwise.
func (l *Loader) ModuleIdentity() uuid.UUID {
	if len(l.modules) == 0 || l.modules[0].Mvid == 0 {
		return vm.NewSyntheticMvid()
	}
	return l.guid(l.modules[0].Mvid)
}

// AssemblyIdentity composes the defining-assembly identity from the
// image's own Assembly table row (ECMA-335 requires at most one, present
// only in the assembly's prime module), per spec.md §6's display-name
// format.
func (l *Loader) AssemblyIdentity() (vm.AssemblyIdentity, error) {
	if len(l.assemblies) == 0 {
		return vm.AssemblyIdentity{}, rterror.New(rterror.TypeLoad, "image carries no Assembly table row")
	}
	a := l.assemblies[0]
	return vm.AssemblyIdentity{
		Name:    l.string(a.Name),
		Version: vm.AssemblyVersion{Major: a.MajorVersion, Minor: a.MinorVersion, Build: a.BuildNumber, Revision: a.RevisionNumber},
		Culture: l.string(a.Culture),
		PublicKeyToken: func() []byte {
			key := l.blob(a.PublicKey)
			if len(key) == 0 {
				return nil
			}
			return vm.PublicKeyToken(key)
		}(),
		Mvid: l.ModuleIdentity(),
	}, nil
}

// AssemblyRefIdentities composes a display-ready identity for every
// AssemblyRef row the image depends on. AssemblyRefTableRow.PublicKeyOrToken
// is already an 8-byte token in the common case (ECMA-335 §II.22.5); only a
// longer blob is a full public key needing PublicKeyToken's SHA-1
// reduction.
func (l *Loader) AssemblyRefIdentities() []vm.AssemblyIdentity {
	out := make([]vm.AssemblyIdentity, 0, len(l.assemblyRefs))
	for _, r := range l.assemblyRefs {
		token := l.blob(r.PublicKeyOrToken)
		if len(token) > 8 {
			token = vm.PublicKeyToken(token)
		}
		out = append(out, vm.AssemblyIdentity{
			Name:           l.string(r.Name),
			Version:        vm.AssemblyVersion{Major: r.MajorVersion, Minor: r.MinorVersion, Build: r.BuildNumber, Revision: r.RevisionNumber},
			Culture:        l.string(r.Culture),
			PublicKeyToken: token,
		})
	}
	return out
}
