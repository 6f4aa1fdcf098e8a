package loader

import (
	"testing"

	"github.com/leanclr/leanclr/internal/image"
	"github.com/leanclr/leanclr/internal/sig"
)

// stringHeap and blobHeap build #Strings/#Blob heap bytes the same shape
// image.File.Parse would produce, so tests exercise the real offset/length
// decoding in string()/blob() rather than hand-picked magic numbers.

type stringHeap struct{ buf []byte }

func newStringHeap() *stringHeap { return &stringHeap{buf: []byte{0}} }

func (h *stringHeap) add(s string) uint32 {
	off := uint32(len(h.buf))
	h.buf = append(h.buf, append([]byte(s), 0)...)
	return off
}

type blobHeap struct{ buf []byte }

func newBlobHeap() *blobHeap { return &blobHeap{buf: []byte{0}} }

// add only supports blobs under 0x80 bytes, the single-byte compressed
// length encoding; every signature built in this file is a handful of bytes.
func (h *blobHeap) add(b []byte) uint32 {
	if len(b) >= 0x80 {
		panic("test blob too large for single-byte compressed length")
	}
	off := uint32(len(h.buf))
	h.buf = append(h.buf, byte(len(b)))
	h.buf = append(h.buf, b...)
	return off
}

// buildImage assembles a minimal two-type image: System.Object (row 1, no
// base) and MyApp.Foo (row 2, extends Object), with Foo declaring one
// instance field (X: int32) and one instance method (GetX() : int32).
func buildImage(t *testing.T) *image.File {
	t.Helper()
	strs := newStringHeap()
	blobs := newBlobHeap()

	nsSystem := strs.add("System")
	nameObject := strs.add("Object")
	nsMyApp := strs.add("MyApp")
	nameFoo := strs.add("Foo")
	nameX := strs.add("X")
	nameGetX := strs.add("GetX")

	fieldSig := blobs.add([]byte{0x06, elementI4})        // FIELD tag, int32
	methodSig := blobs.add([]byte{0x20, 0x00, elementI4}) // HASTHIS, 0 params, returns int32

	typeDefs := []image.TypeDefTableRow{
		{TypeNamespace: nsSystem, TypeName: nameObject, Extends: 0, FieldList: 1, MethodList: 1},
		{TypeNamespace: nsMyApp, TypeName: nameFoo, Extends: 4 /* TypeDef row 1, tag 0 */, FieldList: 1, MethodList: 1},
	}
	fields := []image.FieldTableRow{
		{Name: nameX, Signature: fieldSig},
	}
	methods := []image.MethodDefTableRow{
		{Name: nameGetX, Signature: methodSig, ParamList: 1},
	}

	return &image.File{
		CLR: image.CLRData{
			MetadataTables: map[int]*image.MetadataTable{
				image.TypeDef:   {Content: typeDefs},
				image.Field:     {Content: fields},
				image.MethodDef: {Content: methods},
			},
			MetadataStreams: map[string][]byte{
				"#Strings": strs.buf,
				"#Blob":    blobs.buf,
			},
		},
	}
}

func TestLoadAllResolvesTypeGraph(t *testing.T) {
	img := buildImage(t)
	l := NewLoader(img, 0, sig.NewCache(0))

	classes, err := l.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("got %d classes, want 2", len(classes))
	}

	obj := l.FindClass("System", "Object")
	foo := l.FindClass("MyApp", "Foo")
	if obj == nil || foo == nil {
		t.Fatalf("FindClass did not resolve both types: obj=%v foo=%v", obj, foo)
	}

	if len(obj.Fields) != 0 || len(obj.Methods) != 0 {
		t.Fatalf("Object should declare no members, got %d fields, %d methods", len(obj.Fields), len(obj.Methods))
	}

	if len(foo.Fields) != 1 {
		t.Fatalf("Foo.Fields len = %d, want 1", len(foo.Fields))
	}
	if foo.Fields[0].Name != "X" {
		t.Fatalf("Foo field name = %q, want X", foo.Fields[0].Name)
	}
	if foo.Fields[0].Type.Kind != sig.I4 {
		t.Fatalf("Foo.X kind = %v, want I4", foo.Fields[0].Type.Kind)
	}

	if len(foo.Methods) != 1 {
		t.Fatalf("Foo.Methods len = %d, want 1", len(foo.Methods))
	}
	if foo.Methods[0].Name != "GetX" {
		t.Fatalf("Foo method name = %q, want GetX", foo.Methods[0].Name)
	}
	if foo.Methods[0].ReturnType == nil || foo.Methods[0].ReturnType.Kind != sig.I4 {
		t.Fatalf("GetX return type = %v, want I4", foo.Methods[0].ReturnType)
	}

	if foo.Parent != obj {
		t.Fatalf("Foo.Parent = %v, want Object", foo.Parent)
	}
}

func TestAssemblyIdentityDisplayName(t *testing.T) {
	img := buildImage(t)
	strs := newStringHeap()
	blobs := newBlobHeap()

	name := strs.add("MyApp")
	culture := strs.add("")
	key := blobs.add([]byte{0x01, 0x02, 0x03, 0x04})

	img.CLR.MetadataTables[image.Assembly] = &image.MetadataTable{
		Content: []image.AssemblyTableRow{
			{MajorVersion: 1, MinorVersion: 2, BuildNumber: 3, RevisionNumber: 4, Name: name, Culture: culture, PublicKey: key},
		},
	}
	img.CLR.MetadataStreams["#Strings"] = strs.buf
	img.CLR.MetadataStreams["#Blob"] = blobs.buf

	l := NewLoader(img, 0, sig.NewCache(0))
	id, err := l.AssemblyIdentity()
	if err != nil {
		t.Fatalf("AssemblyIdentity: %v", err)
	}
	if id.Name != "MyApp" {
		t.Fatalf("identity name = %q, want MyApp", id.Name)
	}
	if id.Version.Major != 1 || id.Version.Revision != 4 {
		t.Fatalf("identity version = %+v, want 1.2.3.4", id.Version)
	}
	if id.Culture != "" {
		t.Fatalf("identity culture = %q, want neutral", id.Culture)
	}
	want := "MyApp, Version=1.2.3.4, Culture=neutral, PublicKeyToken="
	if got := id.DisplayName(); len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("DisplayName = %q, want prefix %q", got, want)
	}
}

func TestResolveClassRejectsCrossImage(t *testing.T) {
	img := buildImage(t)
	l := NewLoader(img, 0, sig.NewCache(0))

	other := sig.TypeID{ImageID: 1, Token: tokenFor(image.TypeDef, 1)}
	ts := &sig.TypeSig{Kind: sig.Class, Def: other}
	if _, err := l.ResolveClass(ts); err == nil {
		t.Fatalf("expected an error resolving a type from a different image")
	}
}
