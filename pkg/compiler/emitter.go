package compiler

import (
	"fmt"

	"tcasm/pkg/isa"
)

// Mode selects how a statement is translated. Comparison keywords compute
// into a destination in ModeNormal and become a conditional jump in
// ModeConditionHead, which is only used for the head of an IF.
type Mode int

const (
	ModeNormal Mode = iota
	ModeConditionHead
)

func (m Mode) String() string {
	if m == ModeConditionHead {
		return "condition-head"
	}
	return "normal"
}

// Config controls a translation.
type Config struct {
	// ISA supplies the opcode numbers; nil means isa.Default().
	ISA *isa.Table
	// Annotate attaches each source statement as a comment to the first
	// instruction it produced.
	Annotate bool
}

// Emitter translates statements one at a time into a Program. It owns all
// compilation state and is not safe for concurrent use.
type Emitter struct {
	cfg    Config
	isa    *isa.Table
	scopes *ScopeTable
	memory *Allocator
	defs   *Definitions
	conds  Conditions
	prog   Program
	names  *nameChecker
}

func NewEmitter(cfg Config) *Emitter {
	if cfg.ISA == nil {
		cfg.ISA = isa.Default()
	}
	e := &Emitter{
		cfg:    cfg,
		isa:    cfg.ISA,
		scopes: NewScopeTable(),
		memory: NewAllocator(),
		defs:   NewDefinitions(),
		names:  newNameChecker(cfg.ISA.ConditionKeywords()),
	}
	e.seedRegisters()
	return e
}

// seedRegisters binds the reserved registers under fixed names in the
// global scope.
func (e *Emitter) seedRegisters() {
	a := e.isa.Addresses
	root := e.scopes.Root()
	for name, addr := range map[string]int{
		"RAM":    a.RAM,
		"STACK":  a.Stack,
		"CLK":    a.ProgramCount,
		"RAMADR": a.RAMLatch,
		"TMP0":   a.Scratch0,
		"TMP1":   a.Scratch1,
		"RESL":   a.ResultLow,
		"RESH":   a.ResultHigh,
		"SGTGL":  a.SegmentToggle,
		"CNT":    a.SegmentToggle,
		"USTACK": a.UserStack,
		"IO":     a.IO,
	} {
		root.Declare(name, Reg(addr))
	}
}

func (e *Emitter) Program() *Program         { return &e.prog }
func (e *Emitter) Scopes() *ScopeTable       { return e.scopes }
func (e *Emitter) Memory() *Allocator        { return e.memory }
func (e *Emitter) Definitions() *Definitions { return e.defs }
func (e *Emitter) OpenConditions() int       { return e.conds.Depth() }
func (e *Emitter) ISA() *isa.Table           { return e.isa }
func (e *Emitter) CurrentScope() *Scope      { return e.scopes.Current() }
func (e *Emitter) Config() Config            { return e.cfg }

func (e *Emitter) scope() *Scope                     { return e.scopes.Current() }
func (e *Emitter) resolve(tok string) (Value, error) { return Resolve(tok, e.scope(), true) }

// Feed translates one statement and appends its instructions to the
// program. It returns the appended instructions.
func (e *Emitter) Feed(line SourceLine) ([]*Instruction, error) {
	out, err := e.process(line, ModeNormal)
	if err != nil {
		return nil, atLine(err, line.Number, line.Column(0))
	}
	for _, ins := range out {
		ins.Line = line.Number
	}
	if e.cfg.Annotate && len(out) > 0 {
		out[0].Comment = line.Text()
	}
	e.prog.Append(out...)
	return out, nil
}

// Finish checks that every block was closed and returns the program.
func (e *Emitter) Finish() (*Program, error) {
	if def, ok := e.defs.Current(); ok {
		return nil, &Error{Kind: ErrUnterminatedBlock, Line: def.Line, Column: 1, Token: def.Name, Msg: "DEF without ENDDEF"}
	}
	if cond, ok := e.conds.Current(); ok {
		return nil, &Error{Kind: ErrUnterminatedBlock, Line: cond.Line, Column: 1, Msg: "IF without ENDIF"}
	}
	return &e.prog, nil
}

// process dispatches a statement on its first field. Unknown keywords and
// empty statements produce nothing, except in a condition head where only
// a comparison is allowed.
func (e *Emitter) process(line SourceLine, mode Mode) ([]*Instruction, error) {
	if len(line.Fields) == 0 {
		if mode == ModeConditionHead {
			return nil, failf(ErrInvalidContext, KwIf, "IF needs a comparison")
		}
		return nil, nil
	}

	kw := line.Fields[0]
	if code, ok := e.isa.ConditionCode(kw); ok {
		return e.compare(line, code, mode)
	}
	if mode == ModeConditionHead {
		return nil, failf(ErrInvalidContext, kw, "IF expects one of %v", e.isa.ConditionKeywords())
	}

	switch kw {
	case KwConst:
		return e.constant(line)
	case KwSet:
		return e.set(line)
	case KwSetAdr:
		return e.setAddress(line)
	case KwUnset:
		return e.unset(line)
	case KwAdd:
		return e.arith(line, e.isa.Add, false)
	case KwSub:
		return e.arith(line, e.isa.Subtract, false)
	case KwMul:
		return e.arith(line, e.isa.Multiply, true)
	case KwDiv:
		return e.arith(line, e.isa.Divide, true)
	case KwDef:
		return e.define(line)
	case KwEndDef:
		return e.endDefine(line)
	case KwCall:
		return e.call(line)
	case KwIf:
		return e.ifHead(line)
	case KwEndIf:
		return e.endIf(line)
	}
	return nil, nil
}

// need checks that the statement has at least n operand fields.
func need(line SourceLine, n int) error {
	if len(line.Fields)-1 < n {
		return failf(ErrMissingOperand, line.Fields[0], "expected %d operands, got %d", n, len(line.Fields)-1)
	}
	return nil
}

// Compile translates a whole source text and renders the instruction lines.
func Compile(src string, cfg Config) ([]string, error) {
	prog, err := Translate(src, cfg)
	if err != nil {
		return nil, err
	}
	return prog.Lines()
}

// Translate runs the emitter over src and returns the finished program.
// The first error aborts the translation.
func Translate(src string, cfg Config) (*Program, error) {
	e := NewEmitter(cfg)
	if err := e.Run(src); err != nil {
		return nil, err
	}
	return e.Finish()
}

// Run feeds every statement of src.
func (e *Emitter) Run(src string) error {
	lines, err := Tokenize(src)
	if err != nil {
		return fmt.Errorf("tokenize: %w", err)
	}
	for _, line := range lines {
		if _, err := e.Feed(line); err != nil {
			return err
		}
	}
	return nil
}
