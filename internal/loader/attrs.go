package loader

// TypeAttributes bits this loader classifies (ECMA-335 §II.23.1.15). Only
// the bits the class loader consults are named; visibility and
// string-format bits are parsed by nothing downstream yet.
const (
	tdLayoutMask     = 0x00000018
	tdExplicitLayout = 0x00000010
	tdInterface      = 0x00000020
	tdAbstract       = 0x00000080
	tdSealed         = 0x00000100
)

// FieldAttributes bits (§II.23.1.5).
const (
	faStatic  = 0x0010
	faLiteral = 0x0040
)

// MethodAttributes bits (§II.23.1.10).
const (
	maStatic      = 0x0010
	maFinal       = 0x0020
	maVirtual     = 0x0040
	maNewSlot     = 0x0100
	maAbstract    = 0x0400
	maPinvokeImpl = 0x2000
)

// MethodImplAttributes bits (§II.23.1.10).
const (
	miCodeTypeMask = 0x0003
	miRuntime      = 0x0003
	miInternalCall = 0x1000
)
