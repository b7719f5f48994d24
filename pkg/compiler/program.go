package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"tcasm/pkg/isa"
)

// Label is an instruction address that is only known once the buffer is
// final: the index of Anchor plus Offset, times the instruction width.
// Anchoring to an instruction instead of an index keeps the address right
// when prologue jumps are inserted in front of it later.
type Label struct {
	Anchor *Instruction
	Offset int
}

// After returns the label of the instruction that follows ins.
func After(ins *Instruction) *Label {
	return &Label{Anchor: ins, Offset: 1}
}

// Operand is one argument field of an instruction: a literal number, a
// relocated address, or a placeholder that has not been filled yet.
type Operand struct {
	Value       int
	Target      *Label
	Placeholder bool
}

func Lit(v int) Operand { return Operand{Value: v} }

func Addr(l *Label) Operand { return Operand{Target: l} }

// Pending is the operand a conditional jump carries until IF fills it.
var Pending = Operand{Placeholder: true}

// Instruction is one encoded output line.
type Instruction struct {
	Opcode  int
	Args    [3]Operand
	Line    int
	Comment string
}

// Deferred reports whether the instruction still has an unfilled
// placeholder operand.
func (ins *Instruction) Deferred() bool {
	for _, a := range ins.Args {
		if a.Placeholder {
			return true
		}
	}
	return false
}

// Patch replaces every placeholder operand with l.
func (ins *Instruction) Patch(l *Label) {
	for i := range ins.Args {
		if ins.Args[i].Placeholder {
			ins.Args[i] = Addr(l)
		}
	}
}

// Word is a fully resolved instruction.
type Word struct {
	Opcode  int
	Args    [3]int
	Line    int
	Comment string
}

func (w Word) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(w.Opcode))
	for _, a := range w.Args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(a))
	}
	if w.Comment != "" {
		sb.WriteString(" ; ")
		sb.WriteString(w.Comment)
	}
	return sb.String()
}

// Program is the instruction buffer. It only grows at the end, except for
// the prologue jumps ENDDEF and ENDIF insert at their block's patch site.
type Program struct {
	code []*Instruction
}

func (p *Program) Len() int { return len(p.code) }

func (p *Program) At(i int) *Instruction { return p.code[i] }

// Last returns the most recently appended instruction, or nil.
func (p *Program) Last() *Instruction {
	if len(p.code) == 0 {
		return nil
	}
	return p.code[len(p.code)-1]
}

// IndexOf returns the current index of ins.
func (p *Program) IndexOf(ins *Instruction) (int, bool) {
	for i, c := range p.code {
		if c == ins {
			return i, true
		}
	}
	return 0, false
}

func (p *Program) Append(ins ...*Instruction) {
	p.code = append(p.code, ins...)
}

// Insert places ins at index at, shifting everything from at onwards by
// one slot.
func (p *Program) Insert(at int, ins *Instruction) {
	if at < 0 || at > len(p.code) {
		panic(fmt.Sprintf("insert at %d outside program of %d instructions", at, len(p.code)))
	}
	p.code = append(p.code, nil)
	copy(p.code[at+1:], p.code[at:])
	p.code[at] = ins
}

// Address returns the absolute address of the instruction at index.
func Address(index int) int {
	return index * isa.InstructionWidth
}

func (p *Program) indexes() map[*Instruction]int {
	idx := make(map[*Instruction]int, len(p.code))
	for i, ins := range p.code {
		idx[ins] = i
	}
	return idx
}

func resolveLabel(idx map[*Instruction]int, l *Label) (int, bool) {
	i, ok := idx[l.Anchor]
	if !ok {
		return 0, false
	}
	return Address(i + l.Offset), true
}

// AddressOf resolves l against the current buffer.
func (p *Program) AddressOf(l *Label) (int, bool) {
	return resolveLabel(p.indexes(), l)
}

// Resolve computes every relocated operand against the final buffer.
func (p *Program) Resolve() ([]Word, error) {
	idx := p.indexes()
	words := make([]Word, len(p.code))
	for i, ins := range p.code {
		w := Word{Opcode: ins.Opcode, Line: ins.Line, Comment: ins.Comment}
		for j, a := range ins.Args {
			switch {
			case a.Placeholder:
				return nil, &Error{Kind: ErrUnterminatedBlock, Line: ins.Line, Msg: fmt.Sprintf("instruction %d still has a placeholder operand", i)}
			case a.Target != nil:
				addr, ok := resolveLabel(idx, a.Target)
				if !ok {
					return nil, &Error{Kind: ErrUnterminatedBlock, Line: ins.Line, Msg: fmt.Sprintf("instruction %d jumps to a block that was never closed", i)}
				}
				w.Args[j] = addr
			default:
				w.Args[j] = a.Value
			}
		}
		words[i] = w
	}
	return words, nil
}

// Format renders a single instruction against the current buffer. Operands
// that cannot be resolved yet are shown as "?".
func (p *Program) Format(ins *Instruction) string {
	idx := p.indexes()
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(ins.Opcode))
	for _, a := range ins.Args {
		sb.WriteByte(' ')
		switch {
		case a.Placeholder:
			sb.WriteString("?")
		case a.Target != nil:
			if addr, ok := resolveLabel(idx, a.Target); ok {
				sb.WriteString(strconv.Itoa(addr))
			} else {
				sb.WriteString("?")
			}
		default:
			sb.WriteString(strconv.Itoa(a.Value))
		}
	}
	if ins.Comment != "" {
		sb.WriteString(" ; ")
		sb.WriteString(ins.Comment)
	}
	return sb.String()
}

// Lines renders the resolved program, one instruction per line.
func (p *Program) Lines() ([]string, error) {
	words, err := p.Resolve()
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(words))
	for i, w := range words {
		lines[i] = w.String()
	}
	return lines, nil
}

// SourceMap maps the address of every instruction to its source line.
func (p *Program) SourceMap() map[int]int {
	sm := make(map[int]int, len(p.code))
	for i, ins := range p.code {
		sm[Address(i)] = ins.Line
	}
	return sm
}
