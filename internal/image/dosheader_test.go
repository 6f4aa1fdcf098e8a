// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package image

import (
	"encoding/binary"
	"testing"
)

// buildDOSHeader lays out a minimal 64-byte IMAGE_DOS_HEADER with the given
// magic and e_lfanew, matching ImageDOSHeader's field order exactly (no
// padding: every field is a uint16 except the trailing AddressOfNewEXEHeader
// uint32), so structUnpack can read it straight off a synthetic buffer
// without a real sample binary on disk. The buffer is 256 bytes long so that
// an e_lfanew of 0x80 still lies inside the file, as ParseDOSHeader requires.
func buildDOSHeader(magic uint16, lfanew uint32) []byte {
	buf := make([]byte, 0x100)
	binary.LittleEndian.PutUint16(buf[0:2], magic)
	binary.LittleEndian.PutUint32(buf[60:64], lfanew)
	return buf
}

func TestParseDOSHeaderValid(t *testing.T) {
	data := buildDOSHeader(ImageDOSSignature, 0x80)
	f, err := NewBytes(data, &Options{Fast: true})
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	if err := f.ParseDOSHeader(); err != nil {
		t.Fatalf("ParseDOSHeader failed: %v", err)
	}
	if f.DOSHeader.Magic != ImageDOSSignature {
		t.Fatalf("Magic = %#x, want %#x", f.DOSHeader.Magic, ImageDOSSignature)
	}
	if f.DOSHeader.AddressOfNewEXEHeader != 0x80 {
		t.Fatalf("AddressOfNewEXEHeader = %#x, want %#x", f.DOSHeader.AddressOfNewEXEHeader, 0x80)
	}
	if !f.HasDOSHdr {
		t.Fatalf("HasDOSHdr not set after a successful parse")
	}
}

func TestParseDOSHeaderBadMagic(t *testing.T) {
	data := buildDOSHeader(0x1234, 0x80)
	f, err := NewBytes(data, &Options{Fast: true})
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	if err := f.ParseDOSHeader(); err != ErrDOSMagicNotFound {
		t.Fatalf("ParseDOSHeader() = %v, want %v", err, ErrDOSMagicNotFound)
	}
}

func TestParseDOSHeaderBadElfanew(t *testing.T) {
	// e_lfanew below 4 would make the DOS and NT signatures overlap.
	data := buildDOSHeader(ImageDOSSignature, 2)
	f, err := NewBytes(data, &Options{Fast: true})
	if err != nil {
		t.Fatalf("NewBytes failed: %v", err)
	}
	if err := f.ParseDOSHeader(); err != ErrInvalidElfanewValue {
		t.Fatalf("ParseDOSHeader() = %v, want %v", err, ErrInvalidElfanewValue)
	}
}
