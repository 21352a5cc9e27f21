package wrtcore

import (
	"context"
	"fmt"

	"github.com/pulseengine/wrtcore/api"
	"github.com/pulseengine/wrtcore/internal/capability"
	"github.com/pulseengine/wrtcore/internal/interp"
	"github.com/pulseengine/wrtcore/internal/memory"
	"github.com/pulseengine/wrtcore/internal/module"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// ModuleInstance pairs a compiled Module with its concrete memory/table/
// function vectors (spec section 3: "a module paired with concrete memory/
// table/global/function vectors. Ownership: the instance exclusively owns
// its mutable state"). Every memory allocated for it holds a capability
// released on Close; tables are allocated without one.
type ModuleInstance struct {
	name string
	inst *interp.Instance
	caps []*capability.Capability
}

// InstantiateModule allocates memories and tables for compiled per its
// declared limits, charging each memory's initial size against the runtime
// crate's capability budget (spec section 4.1; tables are not charged), binds hostFuncs by (module, name) against
// compiled's import section, and runs the start function if one is
// declared. Per spec section 8 property 1, InstantiateModule does not
// re-validate; CompileModule's decode must already have succeeded.
func (r *Runtime) InstantiateModule(ctx context.Context, name string, compiled *CompiledModule, hostFuncs []HostFunction) (*ModuleInstance, error) {
	mod := compiled.mod

	var caps []*capability.Capability
	release := func() {
		for _, c := range caps {
			c.Release()
		}
	}

	memories := make([]*memory.Instance, 0, len(mod.MemorySection))
	for _, mt := range mod.MemorySection {
		max := mt.Max
		if max == nil {
			deflt := r.config.memoryMaxPages
			max = &deflt
		}
		cap, err := r.capCtx.Alloc(capability.CrateRuntime, uint64(mt.Min)*memory.PageSize)
		if err != nil {
			release()
			return nil, err
		}
		caps = append(caps, cap)
		mi, err := memory.NewInstance(mt.Min, max, mt.Shared)
		if err != nil {
			release()
			return nil, err
		}
		memories = append(memories, mi)
	}

	tables := make([]*memory.Table, 0, len(mod.TableSection))
	for _, tt := range mod.TableSection {
		tables = append(tables, memory.NewTable(byte(tt.ElemType), tt.Min, tt.Max))
	}

	inst, err := interp.NewInstance(mod, memories, tables)
	if err != nil {
		release()
		return nil, err
	}

	if err := bindImports(inst, mod, hostFuncs); err != nil {
		release()
		return nil, err
	}

	mi := &ModuleInstance{name: name, inst: inst, caps: caps}

	if mod.StartSection != nil {
		if _, err := inst.Call(ctx, *mod.StartSection, nil, interp.NoBudget); err != nil {
			release()
			return nil, err
		}
	}
	return mi, nil
}

// bindImports resolves every function import in mod against hostFuncs by
// (module, name), binding it at its import-space index. Imports that have
// no matching entry are left unbound; calling such a function index, from
// the host or through a Wasm call instruction, fails with the validation
// error "call to undefined function index", and ExportedFunction refuses
// an export that resolves to one.
func bindImports(inst *interp.Instance, mod *module.Module, hostFuncs []HostFunction) error {
	byKey := make(map[[2]string]HostFunction, len(hostFuncs))
	for _, hf := range hostFuncs {
		byKey[[2]string{hf.Module, hf.Name}] = hf
	}

	var idx uint32
	for _, imp := range mod.ImportSection {
		if imp.Kind != module.ImportKindFunc {
			continue
		}
		if hf, ok := byKey[[2]string{imp.Module, imp.Name}]; ok {
			sig := hf.Type
			if sig == nil {
				if int(imp.DescFunc) >= len(mod.TypeSection) {
					return wrterr.New(wrterr.KindValidation, 320, "import function type index out of bounds")
				}
				sig = mod.TypeSection[imp.DescFunc]
			}
			inst.BindHostFunction(idx, sig, hf.Func)
		}
		idx++
	}
	return nil
}

// Close releases every capability this instance's memories hold. A
// ModuleInstance must not be used after Close.
func (mi *ModuleInstance) Close(context.Context) error {
	for _, c := range mi.caps {
		c.Release()
	}
	return nil
}

// exportedFunction is the api.Function wrapper around one fixed export
// index of an instantiated module.
type exportedFunction struct {
	owner *ModuleInstance
	name  string
	idx   uint32
	sig   *module.FunctionType
}

func (f *exportedFunction) String() string { return fmt.Sprintf("%s.%s", f.owner.name, f.name) }

func (f *exportedFunction) ParamTypes() []api.ValueType { return toAPITypes(f.sig.Params) }

func (f *exportedFunction) ResultTypes() []api.ValueType { return toAPITypes(f.sig.Results) }

// Call invokes the export, fuel-metered against the *Task attached to ctx
// via WithTask, or unmetered if none is attached.
func (f *exportedFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	budget := interp.NoBudget
	if t, ok := TaskFromContext(ctx); ok {
		budget = t
	}
	return f.owner.inst.Call(ctx, f.idx, params, budget)
}

func toAPITypes(vs []module.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(vs))
	for i, v := range vs {
		out[i] = api.ValueType(v)
	}
	return out
}

// ExportedFunction looks up a function export by name (spec section 6's
// "invoke" operation). It returns an error if name is not exported, or is
// exported as something other than a function.
func (mi *ModuleInstance) ExportedFunction(name string) (api.Function, error) {
	exp, ok := mi.inst.Module.ExportSection[name]
	if !ok || exp.Kind != module.ImportKindFunc {
		return nil, wrterr.New(wrterr.KindValidation, 330, "no such function export: "+name)
	}
	if int(exp.Index) >= len(mi.inst.Functions) || mi.inst.Functions[exp.Index] == nil {
		return nil, wrterr.New(wrterr.KindValidation, 331, "export resolves to an unbound function index")
	}
	return &exportedFunction{owner: mi, name: name, idx: exp.Index, sig: mi.inst.Functions[exp.Index].Type}, nil
}
