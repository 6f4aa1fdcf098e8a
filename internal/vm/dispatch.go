package vm

import (
	"github.com/leanclr/leanclr/internal/rterror"
)

// ResolveCall implements non-virtual and virtual method dispatch.
//
//   - Non-virtual: returns m directly.
//   - Virtual, class target: indexes receiver.Class.VTable[m.Slot].Impl.
//   - Virtual, interface target: locates the interface's offset range in
//     receiver.Class.InterfaceVTableOffset and indexes by slot within it.
func ResolveCall(m *Method, receiver *Class) (*Method, error) {
	if !m.IsVirtual {
		return m, nil
	}

	if m.Owner.IsInterfaceFlag {
		ifaceSlot := m.Slot
		for _, off := range receiver.InterfaceVTableOffset {
			if off.Iface != m.Owner {
				continue
			}
			idx := off.Base + ifaceSlot
			if idx < 0 || idx >= len(receiver.VTable) {
				return nil, rterror.New(rterror.ExecutionEngine,
					"interface vtable slot %d out of range for %s on %s", ifaceSlot, m.Name, receiver.Name)
			}
			return receiver.VTable[idx].Impl, nil
		}
		return nil, rterror.New(rterror.MissingMethod,
			"class %s does not implement interface %s", receiver.Name, m.Owner.Name)
	}

	if m.Slot < 0 || m.Slot >= len(receiver.VTable) {
		return nil, rterror.New(rterror.ExecutionEngine,
			"vtable slot %d out of range for %s on %s", m.Slot, m.Name, receiver.Name)
	}
	return receiver.VTable[m.Slot].Impl, nil
}

// ResolveVirtualContext builds the generic context for a virtual call:
// class-inst comes from the receiver's class (when it is an inflated
// generic), method-inst from the call-site method. impl is not consulted;
// the context is built the same way whether or not impl is generic.
func ResolveVirtualContext(impl *Method, receiver *Class, callSite *Method) GenericContext {
	ctx := GenericContext{}
	if receiver.GenericInst != nil {
		ctx.ClassInst = receiver.GenericInst.Inst
	}
	if callSite.GenericInst != nil {
		ctx.MethodInst = callSite.GenericInst.MethodInst
	}
	return ctx
}

// AssignableTo reports whether from is reference-assignable to to,
// walking the parent chain and implemented-interface set. Used by
// internal/object's array covariance check and by InvalidCast handling.
func AssignableTo(from, to *Class) bool {
	if from == nil || to == nil {
		return false
	}
	for c := from; c != nil; c = c.Parent {
		if c == to {
			return true
		}
		for _, iface := range c.Interfaces {
			if iface == to {
				return true
			}
		}
	}
	return false
}

// ConstrainedCallTarget implements the `constrained.` prefix per spec
// §4.6: resolve the method on the value type; if the target's declaring
// class is the constrained class, call directly on the managed pointer;
// otherwise box into a reference and call virtually.
type ConstrainedCallTarget struct {
	// DirectMethod is set when the constrained class itself declares (or
	// inherits without boxing) the target method — call on the managed
	// pointer without boxing.
	DirectMethod *Method
	// RequiresBox is set when no direct implementation exists on the
	// value type; the caller must box and dispatch virtually using
	// BoxedMethod.
	RequiresBox bool
	BoxedMethod *Method
}

// ResolveConstrainedCall picks the constrained-callvirt strategy for a
// value-type receiver class constrainedClass dispatching virtual method m.
func ResolveConstrainedCall(constrainedClass *Class, m *Method) (ConstrainedCallTarget, error) {
	for _, cm := range constrainedClass.Methods {
		if cm.SignatureEquals(m) {
			return ConstrainedCallTarget{DirectMethod: cm}, nil
		}
	}
	impl, err := ResolveCall(m, constrainedClass)
	if err != nil {
		return ConstrainedCallTarget{}, err
	}
	return ConstrainedCallTarget{RequiresBox: true, BoxedMethod: impl}, nil
}
