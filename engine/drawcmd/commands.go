package drawcmd

// BatchDrawCommand is one indirect draw over a contiguous run of VisibleInstances.
type BatchDrawCommand struct {
	VisibleOffset       uint32
	VisibleCount        uint32
	BatchID             uint32
	MaterialID          uint32
	MeshID              uint32
	SubMeshIndex        uint16
	SplitVisibilityMask uint8
	Flags               DrawFlags
	FilterIndex         uint32
	SortingPosition     uint32 // offset into SortingPositions; only meaningful when depth sorted
}

// DepthSorted reports whether the command carries a sorting position.
func (c BatchDrawCommand) DepthSorted() bool {
	return c.Flags&FlagHasSortingPosition != 0
}

// BatchDrawRange is a run of draw commands issued as one indirect multi-draw.
type BatchDrawRange struct {
	FilterIndex       uint32
	DrawCommandsBegin uint32
	DrawCommandsCount uint32
	InstanceCount     uint32
	AllDepthSorted    bool
}

// WriteDrawCommands splits one bin into draw commands. A depth-sorted bin gets one command per
// instance; any other bin gets ceil(n / maxPerDrawCommand) commands.
//
// Parameters:
//   - settings: the bin's draw state
//   - bin: the bin's output offsets
//   - maxPerDrawCommand: the instance limit of a non-sorted command
//   - dst: exactly bin.DrawCommandCount commands to fill
func WriteDrawCommands(settings DrawCommandSettings, bin BinIndex, maxPerDrawCommand int, dst []BatchDrawCommand) {
	per := maxPerDrawCommand
	if settings.DepthSorted() {
		per = 1
	}
	remaining := bin.InstanceCount
	for i := range dst {
		n := min(per, remaining)
		cmd := BatchDrawCommand{
			VisibleOffset:       uint32(bin.InstanceOffset + i*per),
			VisibleCount:        uint32(n),
			BatchID:             settings.BatchID,
			MaterialID:          settings.MaterialID,
			MeshID:              settings.MeshID,
			SubMeshIndex:        settings.SubMeshIndex,
			SplitVisibilityMask: settings.SplitMask,
			Flags:               settings.Flags,
			FilterIndex:         settings.FilterIndex,
		}
		if bin.SortingOffset >= 0 {
			cmd.SortingPosition = uint32(bin.SortingOffset + i*per)
		}
		dst[i] = cmd
		remaining -= n
	}
}

// GenerateRanges coalesces consecutive draw commands into ranges. A command joins the current
// range while its filter index matches and the range stays within maxInstances and maxCommands.
//
// Parameters:
//   - cmds: the draw commands in issue order
//   - maxInstances: instance limit of one range
//   - maxCommands: command limit of one range
//
// Returns:
//   - []BatchDrawRange: the ranges
func GenerateRanges(cmds []BatchDrawCommand, maxInstances, maxCommands int) []BatchDrawRange {
	var ranges []BatchDrawRange
	var cur *BatchDrawRange
	for i, cmd := range cmds {
		fits := cur != nil &&
			cur.FilterIndex == cmd.FilterIndex &&
			int(cur.InstanceCount+cmd.VisibleCount) <= maxInstances &&
			int(cur.DrawCommandsCount)+1 <= maxCommands
		if !fits {
			ranges = append(ranges, BatchDrawRange{
				FilterIndex:       cmd.FilterIndex,
				DrawCommandsBegin: uint32(i),
				AllDepthSorted:    true,
			})
			cur = &ranges[len(ranges)-1]
		}
		cur.DrawCommandsCount++
		cur.InstanceCount += cmd.VisibleCount
		cur.AllDepthSorted = cur.AllDepthSorted && cmd.DepthSorted()
	}
	return ranges
}
