package internalwasm

import (
	"fmt"

	"github.com/gowasm/interp/api"
)

// ExternType classifies an exported or imported item.
type ExternType byte

const (
	ExternTypeFunc ExternType = iota
	ExternTypeTable
	ExternTypeMemory
	ExternTypeGlobal
)

// Module is the static, pre-instantiation description of a unit of Wasm
// code: its types, functions (already lowered to wazeroir by the
// compiler), memory/table/global definitions, and exports. There is no
// decoder here -- a Module is built directly by an embedder or test, or
// produced by lowering a structured function body through
// internal/wazeroir.
type Module struct {
	TypeSection     []*FunctionType
	FunctionSection []Index // FunctionSection[i] indexes TypeSection for defined function i
	CodeSection     []interface{}
	MemorySection   *MemoryType
	TableSection    *TableType
	GlobalSection   []*GlobalDefinition
	ExportSection   map[string]*Export

	NameSection *NameSection
}

// MemoryType describes a module-defined memory's limits.
type MemoryType struct {
	Min uint32
	Max *uint32
}

// TableType describes a module-defined table's limits.
type TableType struct {
	Min uint32
	Max *uint32
}

// GlobalDefinition is a module-defined global: its type and constant
// initializer value.
type GlobalDefinition struct {
	Type *GlobalType
	Init uint64
}

// Export associates a name with an index into one of the module's
// namespaces.
type Export struct {
	Type  ExternType
	Name  string
	Index Index
}

// NameSection carries optional debug names, mirroring the Wasm custom
// "name" section's purpose without requiring a decoder for it.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// SignatureByFunctionIndex returns the function type of the defined
// function at idx within the module's function index space, or nil if
// idx is out of range. Used by internal/wazeroir while compiling call.
func (mod *Module) SignatureByFunctionIndex(idx Index) *FunctionType {
	if int(idx) >= len(mod.FunctionSection) {
		return nil
	}
	typeIdx := mod.FunctionSection[idx]
	if int(typeIdx) >= len(mod.TypeSection) {
		return nil
	}
	return mod.TypeSection[typeIdx]
}

// GlobalTypeByIndex returns the type of the global at idx, or nil if out
// of range. Used by internal/wazeroir while compiling global.get/set.
func (mod *Module) GlobalTypeByIndex(idx Index) *GlobalType {
	if int(idx) >= len(mod.GlobalSection) {
		return nil
	}
	return mod.GlobalSection[idx].Type
}

// ModuleInstance is a Module bound to concrete runtime storage: function
// instances (its own plus any imported), one memory, one table, and its
// globals, along with a name→instance export lookup.
type ModuleInstance struct {
	Name string

	Functions      []*FunctionInstance
	MemoryInstance *MemoryInstance
	TableInstance  *TableInstance
	Globals        []*GlobalInstance

	Exports map[string]*ExportInstance

	Types []*FunctionType
}

// ExportInstance is a resolved export: exactly one of its fields is set,
// matching Type.
type ExportInstance struct {
	Type     ExternType
	Function *FunctionInstance
	Memory   *MemoryInstance
	Table    *TableInstance
	Global   *GlobalInstance
}

// ExportedFunction looks up a function export by name, or nil if absent
// or not a function.
func (m *ModuleInstance) ExportedFunction(name string) *FunctionInstance {
	if e, ok := m.Exports[name]; ok && e.Type == ExternTypeFunc {
		return e.Function
	}
	return nil
}

// ExportedMemory looks up a memory export by name, or nil if absent or
// not a memory.
func (m *ModuleInstance) ExportedMemory(name string) *MemoryInstance {
	if e, ok := m.Exports[name]; ok && e.Type == ExternTypeMemory {
		return e.Memory
	}
	return nil
}

// ExportedGlobal looks up a global export by name, returning it adapted
// to api.Global, or nil if absent or not a global.
func (m *ModuleInstance) ExportedGlobal(name string) api.Global {
	if e, ok := m.Exports[name]; ok && e.Type == ExternTypeGlobal {
		return AsAPIGlobal(e.Global)
	}
	return nil
}

// Memory returns the module's linear memory adapted to api.Memory, or nil
// if it defines none. Used to satisfy api.HostFunctionCallContext.
func (m *ModuleInstance) Memory() api.Memory {
	if m.MemoryInstance == nil {
		return nil
	}
	return m.MemoryInstance.AsAPIMemory()
}

// FunctionByIndex returns the function at idx within the module's function
// namespace (imports first, then module-defined), or nil if out of range.
func (m *ModuleInstance) FunctionByIndex(idx Index) *FunctionInstance {
	if idx >= uint32(len(m.Functions)) {
		return nil
	}
	return m.Functions[idx]
}

// TableByIndex returns the module's table, or nil if it defines none. MVP
// modules have at most one table, so idx is ignored beyond range-checking
// against that single slot.
func (m *ModuleInstance) TableByIndex(idx Index) *TableInstance {
	if idx != 0 || m.TableInstance == nil {
		return nil
	}
	return m.TableInstance
}

// MemoryByIndex returns the module's memory, or nil if it defines none.
func (m *ModuleInstance) MemoryByIndex(idx Index) *MemoryInstance {
	if idx != 0 || m.MemoryInstance == nil {
		return nil
	}
	return m.MemoryInstance
}

// GlobalByIndex returns the global at idx, or nil if out of range.
func (m *ModuleInstance) GlobalByIndex(idx Index) *GlobalInstance {
	if idx >= uint32(len(m.Globals)) {
		return nil
	}
	return m.Globals[idx]
}

// SignatureByIndex returns the function type at idx within the module's
// type namespace, or nil if out of range.
func (m *ModuleInstance) SignatureByIndex(idx Index) *FunctionType {
	if idx >= uint32(len(m.Types)) {
		return nil
	}
	return m.Types[idx]
}

// buildExports resolves mod's ExportSection against already-instantiated
// storage, producing the name-indexed export table.
func (mod *Module) buildExports(instance *ModuleInstance) error {
	instance.Exports = make(map[string]*ExportInstance, len(mod.ExportSection))
	for name, exp := range mod.ExportSection {
		ei := &ExportInstance{Type: exp.Type}
		switch exp.Type {
		case ExternTypeFunc:
			if int(exp.Index) >= len(instance.Functions) {
				return fmt.Errorf("export[%s] func index %d out of range", name, exp.Index)
			}
			ei.Function = instance.Functions[exp.Index]
		case ExternTypeMemory:
			if instance.MemoryInstance == nil {
				return fmt.Errorf("export[%s] refers to memory, but module has none", name)
			}
			ei.Memory = instance.MemoryInstance
		case ExternTypeTable:
			if instance.TableInstance == nil {
				return fmt.Errorf("export[%s] refers to table, but module has none", name)
			}
			ei.Table = instance.TableInstance
		case ExternTypeGlobal:
			if int(exp.Index) >= len(instance.Globals) {
				return fmt.Errorf("export[%s] global index %d out of range", name, exp.Index)
			}
			ei.Global = instance.Globals[exp.Index]
		default:
			return fmt.Errorf("export[%s] has unknown type %d", name, exp.Type)
		}
		instance.Exports[name] = ei
	}
	return nil
}
