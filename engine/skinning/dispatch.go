package skinning

// Kernel identifies one of the three skinning compute kernels.
type Kernel uint8

const (
	// KernelBatchSkinning runs one workgroup per batch header.
	KernelBatchSkinning Kernel = iota
	// KernelExpansion runs one workgroup per expansion header.
	KernelExpansion
	// KernelMeshSkinning runs one workgroup per mesh-skinning command.
	KernelMeshSkinning
)

// String returns the kernel's entry point name.
func (k Kernel) String() string {
	switch k {
	case KernelBatchSkinning:
		return "batchSkinning"
	case KernelExpansion:
		return "expansion"
	case KernelMeshSkinning:
		return "meshSkinning"
	default:
		return "unknown"
	}
}

// MaxGroupsPerDispatch is the largest workgroup count a single dispatch may use in one dimension.
const MaxGroupsPerDispatch = 65535

// DispatchCommand is one compute launch. FirstGroup is the index of the first header or
// command the launch covers, and must be bound by the caller before the dispatch.
type DispatchCommand struct {
	Kernel     Kernel
	FirstGroup uint32
	GroupCount uint32
}

// Dispatcher records compute launches. *wgpu.ComputePassEncoder satisfies it.
type Dispatcher interface {
	DispatchWorkgroups(x, y, z uint32)
}

func (c *compiler) Dispatch(f *Frame) []DispatchCommand {
	if f == nil {
		return nil
	}
	var out []DispatchCommand
	out = appendDispatches(out, KernelBatchSkinning, f.Layout.BatchHeadersCount)
	out = appendDispatches(out, KernelExpansion, f.Layout.ExpansionHeadersCount)
	out = appendDispatches(out, KernelMeshSkinning, f.Layout.MeshSkinningCommandsCount)
	return out
}

// appendDispatches splits total groups of kernel k into launches of at most MaxGroupsPerDispatch.
func appendDispatches(out []DispatchCommand, k Kernel, total uint32) []DispatchCommand {
	for first := uint32(0); first < total; first += MaxGroupsPerDispatch {
		out = append(out, DispatchCommand{
			Kernel:     k,
			FirstGroup: first,
			GroupCount: min(total-first, MaxGroupsPerDispatch),
		})
	}
	return out
}

// Encode records every command on d. bind is called before each launch so the caller can
// set the kernel's pipeline and the FirstGroup offset.
//
// Parameters:
//   - d: the compute pass
//   - cmds: the result of Compiler.Dispatch
//   - bind: optional per-launch setup
func Encode(d Dispatcher, cmds []DispatchCommand, bind func(DispatchCommand)) {
	for _, cmd := range cmds {
		if bind != nil {
			bind(cmd)
		}
		d.DispatchWorkgroups(cmd.GroupCount, 1, 1)
	}
}
