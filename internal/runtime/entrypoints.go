package runtime

// QuickEntrypoint is a runtime function called by generated code through the
// entrypoint table of the thread. Arguments follow the runtime calling
// convention: a0-a3 for core values, f12 and f14 for floating point values.
// Results come back in v0, (v0, v1) or f0.
type QuickEntrypoint uint16

const (
	// QuickAllocObject allocates an instance of the class in a0.
	QuickAllocObject QuickEntrypoint = iota
	// QuickAllocArray allocates an array of the class in a0 with a1 elements.
	QuickAllocArray
	// QuickInitializeType resolves the type index a0.
	QuickInitializeType
	// QuickInitializeStaticStorage resolves and initializes the type index a0.
	QuickInitializeStaticStorage
	// QuickResolveString resolves the string index a0.
	QuickResolveString
	QuickThrowNullPointer
	// QuickThrowArrayBounds throws for the index a0 and the length a1.
	QuickThrowArrayBounds
	QuickThrowDivZero
	QuickThrowStackOverflow
	// QuickDeliverException throws the exception object in a0.
	QuickDeliverException
	// QuickCheckInstanceOf throws ClassCastException unless the object in a0
	// is an instance of the class in a1.
	QuickCheckInstanceOf
	// QuickInstanceOf returns whether the object in a0 is an instance of the class in a1.
	QuickInstanceOf
	// QuickAputObject stores a2 into the array a0 at index a1 after checking its type.
	QuickAputObject
	QuickTestSuspend
	QuickDeoptimize
	QuickLockObject
	QuickUnlockObject
	QuickLdiv
	QuickLmod
	QuickFmodf
	QuickFmod
	QuickF2iz
	QuickD2iz
	QuickF2l
	QuickD2l
	QuickL2f
	QuickL2d
	// QuickReadBarrierMark returns the to-space reference of the object in a0.
	QuickReadBarrierMark
	// QuickInvokeStaticTrampoline resolves the method index a0 and jumps to it
	// with the arguments of the call untouched.
	QuickInvokeStaticTrampoline

	quickEntrypointEnd
)

// NumQuickEntrypoints is the number of entries of the entrypoint table.
const NumQuickEntrypoints = int(quickEntrypointEnd)

var quickEntrypointNames = [...]string{
	QuickAllocObject:             "pAllocObject",
	QuickAllocArray:              "pAllocArray",
	QuickInitializeType:          "pInitializeType",
	QuickInitializeStaticStorage: "pInitializeStaticStorage",
	QuickResolveString:           "pResolveString",
	QuickThrowNullPointer:        "pThrowNullPointer",
	QuickThrowArrayBounds:        "pThrowArrayBounds",
	QuickThrowDivZero:            "pThrowDivZero",
	QuickThrowStackOverflow:      "pThrowStackOverflow",
	QuickDeliverException:        "pDeliverException",
	QuickCheckInstanceOf:         "pCheckInstanceOf",
	QuickInstanceOf:              "pInstanceOf",
	QuickAputObject:              "pAputObject",
	QuickTestSuspend:             "pTestSuspend",
	QuickDeoptimize:              "pDeoptimize",
	QuickLockObject:              "pLockObject",
	QuickUnlockObject:            "pUnlockObject",
	QuickLdiv:                    "pLdiv",
	QuickLmod:                    "pLmod",
	QuickFmodf:                   "pFmodf",
	QuickFmod:                    "pFmod",
	QuickF2iz:                    "pF2iz",
	QuickD2iz:                    "pD2iz",
	QuickF2l:                     "pF2l",
	QuickD2l:                     "pD2l",
	QuickL2f:                     "pL2f",
	QuickL2d:                     "pL2d",
	QuickReadBarrierMark:         "pReadBarrierMark",
	QuickInvokeStaticTrampoline:  "pInvokeStaticTrampoline",
}

// String implements fmt.Stringer.
func (e QuickEntrypoint) String() string {
	if int(e) < len(quickEntrypointNames) {
		return quickEntrypointNames[e]
	}
	return "invalid"
}

// Offset returns the offset of the entry in the thread.
func (e QuickEntrypoint) Offset() int64 { return ThreadEntrypointsOffset + 4*int64(e) }

// IsSaveEverything returns true for the entrypoints which preserve every
// register except the result register v0. Their slow paths only save what
// they clobber themselves.
func (e QuickEntrypoint) IsSaveEverything() bool {
	switch e {
	case QuickInitializeType, QuickInitializeStaticStorage, QuickResolveString, QuickTestSuspend:
		return true
	}
	return false
}

// IsFatal returns true for the entrypoints which never return.
func (e QuickEntrypoint) IsFatal() bool {
	switch e {
	case QuickThrowNullPointer, QuickThrowArrayBounds, QuickThrowDivZero, QuickThrowStackOverflow,
		QuickDeliverException, QuickDeoptimize:
		return true
	}
	return false
}

// NeedsStackMap returns false for the entrypoints which never reach a
// safepoint, so that calls to them record no stack map.
func (e QuickEntrypoint) NeedsStackMap() bool { return e != QuickReadBarrierMark }
