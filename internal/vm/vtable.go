package vm

import (
	"github.com/leanclr/leanclr/internal/rterror"
)

// InitializeVTables assigns vtable slots following §4.3's five steps. Must
// run after the methods and interfaces phases.
func (c *Class) InitializeVTables(r Resolver) error {
	done, cyclic := c.enterPhase(phaseVTables)
	if done {
		return nil
	}
	if cyclic {
		return rterror.New(rterror.TypeLoad, "cyclic vtable construction for %s.%s", c.Namespace, c.Name)
	}
	if !c.hasPhase(phaseMethods) || !c.hasPhase(phaseInterfaces) {
		c.clearLoading(phaseVTables)
		return rterror.New(rterror.ExecutionEngine,
			"InitializeVTables called before methods/interfaces phases for %s.%s", c.Namespace, c.Name)
	}

	// Step 1: copy the parent's vtable.
	var vt []VirtualInvokeData
	if c.Parent != nil {
		vt = append(vt, c.Parent.VTable...)
	}

	// Step 2: walk declared methods, override-by-name/signature or append
	// a new slot.
	for _, m := range c.Methods {
		if !m.IsVirtual {
			continue
		}
		if m.IsNewSlot {
			m.Slot = len(vt)
			vt = append(vt, VirtualInvokeData{Decl: m, Impl: m})
			continue
		}
		slot := findOverrideSlot(vt, m)
		if slot >= 0 {
			m.Slot = slot
			vt[slot].Impl = m
		} else {
			m.Slot = len(vt)
			vt = append(vt, VirtualInvokeData{Decl: m, Impl: m})
		}
	}

	// Step 3: apply method-impl directives.
	impls, err := r.MethodImpls(c)
	if err != nil {
		c.clearLoading(phaseVTables)
		return rterror.Wrap(rterror.TypeLoad, err, "listing method-impls of %s.%s", c.Namespace, c.Name)
	}
	for _, mi := range impls {
		slot := mi.Decl.Slot
		if slot < 0 || slot >= len(vt) {
			c.clearLoading(phaseVTables)
			return rterror.New(rterror.BadImageFormat,
				"method-impl directive references an unresolved slot in %s.%s", c.Namespace, c.Name)
		}
		vt[slot].Impl = mi.Impl
	}

	// Step 4 + 5: compute a contiguous interface-offset range per
	// implemented interface (direct and inherited), choosing the
	// implementing method by explicit method-impl, else by name+signature
	// match, else by inheriting the parent's mapping.
	var ifaceOffsets []InterfaceOffset
	if c.Parent != nil {
		ifaceOffsets = append(ifaceOffsets, c.Parent.InterfaceVTableOffset...)
	}
	for _, iface := range c.Interfaces {
		if hasInterfaceOffset(ifaceOffsets, iface) {
			continue
		}
		base := len(vt)
		for _, im := range iface.Methods {
			if !im.IsVirtual {
				continue
			}
			impl := resolveInterfaceImpl(c, iface, im, impls)
			vt = append(vt, VirtualInvokeData{Decl: im, Impl: impl})
		}
		ifaceOffsets = append(ifaceOffsets, InterfaceOffset{Iface: iface, Base: base})
	}

	c.VTable = vt
	c.InterfaceVTableOffset = ifaceOffsets
	c.finishPhase(phaseVTables)
	return nil
}

func findOverrideSlot(vt []VirtualInvokeData, m *Method) int {
	for i, v := range vt {
		if v.Decl.SignatureEquals(m) {
			return i
		}
	}
	return -1
}

func hasInterfaceOffset(offsets []InterfaceOffset, iface *Class) bool {
	for _, o := range offsets {
		if o.Iface == iface {
			return true
		}
	}
	return false
}

// resolveInterfaceImpl chooses, for one interface slot im, (a) an explicit
// method-impl mapping, else (b) the class's first method whose
// name+signature matches, else (c) the inherited implementation from the
// parent's interface-offset table, else the interface method itself
// (abstract class case).
func resolveInterfaceImpl(c *Class, iface *Class, im *Method, impls []MethodImplDirective) *Method {
	for _, mi := range impls {
		if mi.Decl == im {
			return mi.Impl
		}
	}
	for _, m := range c.Methods {
		if m.SignatureEquals(im) {
			return m
		}
	}
	if c.Parent != nil {
		for _, o := range c.Parent.InterfaceVTableOffset {
			if o.Iface != iface {
				continue
			}
			for i, pm := range iface.Methods {
				if pm == im && o.Base+i < len(c.Parent.VTable) {
					return c.Parent.VTable[o.Base+i].Impl
				}
			}
		}
	}
	return im
}
