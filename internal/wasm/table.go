package internalwasm

// TableInstance is a module's table of function references, used to
// implement call_indirect. An unset slot is nil.
type TableInstance struct {
	Table []*FunctionInstance
	Min   uint32
	Max   *uint32
}

// Get returns the function at idx, or nil if idx is out of range or the
// slot is unset (an uninitialized element, which the caller must trap on).
func (t *TableInstance) Get(idx uint32) *FunctionInstance {
	if idx >= uint32(len(t.Table)) {
		return nil
	}
	return t.Table[idx]
}
