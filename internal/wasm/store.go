package internalwasm

import (
	"fmt"
	"sync"
)

// Store is the runtime home of instantiated modules, keyed by the name
// they were instantiated under. There is no cross-module import
// resolution here -- just enough bookkeeping so host-defined modules and
// interpreted modules can coexist and be looked up by name.
//
// Store is not concurrency-safe beyond what mux guards; embedders calling
// Instantiate/Module from multiple goroutines must not do so for the same
// name concurrently.
type Store struct {
	modules map[string]*ModuleInstance
	mux     sync.RWMutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{modules: map[string]*ModuleInstance{}}
}

// Instantiate builds a ModuleInstance from mod under the given name:
// allocating its memory/table/globals, binding its function instances'
// Index/ModuleName/Name debug fields, and resolving its export table.
// The function bodies in mod.CodeSection are expected to already be
// wazeroir-compiled (by internal/wazeroir); each becomes a function
// instance's Body. Host functions are bound afterwards by setting the
// instance's GoFunc.
func (s *Store) Instantiate(mod *Module, name string) (*ModuleInstance, error) {
	s.mux.Lock()
	if _, ok := s.modules[name]; ok {
		s.mux.Unlock()
		return nil, fmt.Errorf("module %q has already been instantiated", name)
	}
	s.modules[name] = nil // reserve the name during construction
	s.mux.Unlock()

	instance, err := newModuleInstance(mod, name)
	if err != nil {
		s.deleteModule(name)
		return nil, err
	}

	s.mux.Lock()
	s.modules[name] = instance
	s.mux.Unlock()
	return instance, nil
}

func (s *Store) deleteModule(name string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.modules, name)
}

// Module looks up a previously instantiated module by name.
func (s *Store) Module(name string) *ModuleInstance {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.modules[name]
}

func newModuleInstance(mod *Module, name string) (*ModuleInstance, error) {
	instance := &ModuleInstance{Name: name, Types: mod.TypeSection}

	if mod.MemorySection != nil {
		instance.MemoryInstance = &MemoryInstance{
			Buffer: make([]byte, MemoryPagesToBytesNum(mod.MemorySection.Min)),
			Min:    mod.MemorySection.Min,
			Max:    mod.MemorySection.Max,
		}
	}
	if mod.TableSection != nil {
		instance.TableInstance = &TableInstance{
			Table: make([]*FunctionInstance, mod.TableSection.Min),
			Min:   mod.TableSection.Min,
			Max:   mod.TableSection.Max,
		}
	}
	for _, g := range mod.GlobalSection {
		instance.Globals = append(instance.Globals, &GlobalInstance{Type: g.Type, Val: g.Init})
	}

	instance.Functions = make([]*FunctionInstance, len(mod.FunctionSection))
	for i, typeIdx := range mod.FunctionSection {
		if int(typeIdx) >= len(mod.TypeSection) {
			return nil, fmt.Errorf("function[%d] references out-of-range type %d", i, typeIdx)
		}
		fn := &FunctionInstance{
			Type:       mod.TypeSection[typeIdx],
			Index:      Index(i),
			ModuleName: name,
		}
		if i < len(mod.CodeSection) {
			fn.Body = mod.CodeSection[i]
		}
		if mod.NameSection != nil {
			fn.Name = mod.NameSection.FunctionNames[Index(i)]
		}
		instance.Functions[i] = fn
	}

	if err := mod.buildExports(instance); err != nil {
		return nil, err
	}
	return instance, nil
}
