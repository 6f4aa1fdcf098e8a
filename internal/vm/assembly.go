package vm

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

// AssemblyVersion is a four-part ECMA-335 assembly version.
type AssemblyVersion struct {
	Major, Minor, Build, Revision uint16
}

// semverString renders the major.minor.build triple in the dotted form
// golang.org/x/mod/semver expects; x/mod has no fourth segment, so Revision
// is never folded into it and instead breaks ties in CompareVersion.
func (v AssemblyVersion) semverString() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Build)
}

// CompareVersion orders two assembly versions the way bind-time version
// matching does: major.minor.build compared via semver.Compare, Revision
// breaking a tie when the triple is equal.
func CompareVersion(a, b AssemblyVersion) int {
	if c := semver.Compare(a.semverString(), b.semverString()); c != 0 {
		return c
	}
	switch {
	case a.Revision < b.Revision:
		return -1
	case a.Revision > b.Revision:
		return 1
	default:
		return 0
	}
}

// AssemblyIdentity is the resolved, display-ready form of an Assembly or
// AssemblyRef metadata row.
type AssemblyIdentity struct {
	Name           string
	Version        AssemblyVersion
	Culture        string // "" means neutral
	PublicKeyToken []byte // nil means no strong name
	Mvid           uuid.UUID
}

// DisplayName composes id's display name as
// "Name, Version=a.b.c.d, Culture=<name|neutral>, PublicKeyToken=<hex|null>".
func (id AssemblyIdentity) DisplayName() string {
	culture := id.Culture
	if culture == "" {
		culture = "neutral"
	}
	token := "null"
	if len(id.PublicKeyToken) > 0 {
		token = hex.EncodeToString(id.PublicKeyToken)
	}
	return fmt.Sprintf("%s, Version=%d.%d.%d.%d, Culture=%s, PublicKeyToken=%s",
		id.Name, id.Version.Major, id.Version.Minor, id.Version.Build, id.Version.Revision, culture, token)
}

// PublicKeyToken derives the 8-byte strong-name token from a full public
// key blob: the low 8 bytes of its SHA-1 hash, byte-reversed, matching the
// CLI's StrongNameTokenFromPublicKey.
func PublicKeyToken(publicKey []byte) []byte {
	if len(publicKey) == 0 {
		return nil
	}
	sum := sha1.Sum(publicKey)
	token := make([]byte, 8)
	for i := 0; i < 8; i++ {
		token[i] = sum[len(sum)-1-i]
	}
	return token
}

// NewSyntheticMvid stamps a fresh module-version identity for an image that
// carries no GUID heap entry of its own, so every loaded module has a
// stable per-process identity for assembly-equality checks even absent a
// strong name.
func NewSyntheticMvid() uuid.UUID {
	return uuid.New()
}
