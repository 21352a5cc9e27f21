package interp

import (
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

// blockInfo records, for one structured control-flow instruction at a given
// program counter, where its matching else/end instruction lies and how
// many results it produces. This is computed once per function body — the
// teacher's lowerIR plays the same one-time-compile role before
// interpretation, here reduced to a single bracket-matching pass over raw
// bytes rather than a full wazeroir lowering.
type blockInfo struct {
	elsePC  int // -1 if no else
	endPC   int
	arity   int // 0 or 1; multi-value block types are not supported
	isLoop  bool
	isBlock bool
}

// compiledFunction is the result of the one-time compile pass over a
// module.Code body.
type compiledFunction struct {
	body   []byte
	blocks map[int]*blockInfo // keyed by the PC of the block/loop/if opcode itself
}

func compileFunction(body []byte) (*compiledFunction, error) {
	cf := &compiledFunction{body: body, blocks: map[int]*blockInfo{}}
	type frame struct {
		startPC int
		isLoop  bool
		elsePC  int
	}
	var stack []frame
	pc := 0
	for pc < len(body) {
		op := body[pc]
		opStart := pc
		pc++
		switch op {
		case OpBlock, OpLoop, OpIf:
			arity, n, err := readBlockType(body[pc:])
			if err != nil {
				return nil, err
			}
			pc += n
			stack = append(stack, frame{startPC: opStart, isLoop: op == OpLoop, elsePC: -1})
			cf.blocks[opStart] = &blockInfo{arity: arity, isLoop: op == OpLoop, isBlock: op != OpLoop, elsePC: -1}
		case OpElse:
			if len(stack) == 0 {
				return nil, wrterr.New(wrterr.KindValidation, 300, "else without matching if")
			}
			top := &stack[len(stack)-1]
			top.elsePC = opStart
			cf.blocks[top.startPC].elsePC = opStart
		case OpEnd:
			if len(stack) == 0 {
				continue // function-level end
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cf.blocks[top.startPC].endPC = opStart
		default:
			n, err := immediateLen(op, body[pc:])
			if err != nil {
				return nil, err
			}
			pc += n
		}
	}
	return cf, nil
}

// readBlockType parses a block's type immediate: 0x40 (void), or a single
// value type byte. Multi-value block types (encoded as a signed LEB128
// type index) are rejected rather than silently mishandled.
func readBlockType(b []byte) (arity int, n int, err error) {
	if len(b) == 0 {
		return 0, 0, wrterr.New(wrterr.KindParse, 301, "truncated block type")
	}
	switch b[0] {
	case 0x40:
		return 0, 1, nil
	case 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f:
		return 1, 1, nil
	default:
		return 0, 0, wrterr.New(wrterr.KindValidation, 302, "multi-value block types are not supported")
	}
}
