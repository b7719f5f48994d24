package compiler

import (
	"strings"
)

// move builds "dst := src". The source is an immediate when imm is set,
// otherwise it names a register.
func (e *Emitter) move(src Operand, imm bool, dst int) *Instruction {
	op := e.isa.ALU + e.isa.Move
	if imm {
		op += e.isa.Immediate0
	}
	return &Instruction{Opcode: op, Args: [3]Operand{src, Lit(0), Lit(dst)}}
}

// latch points the RAM register at cell addr.
func (e *Emitter) latch(addr int) *Instruction {
	return e.move(Lit(addr), true, e.isa.Addresses.RAMLatch)
}

// jump assigns the program counter.
func (e *Emitter) jump(target Operand, imm bool) *Instruction {
	return e.move(target, imm, e.isa.Addresses.ProgramCount)
}

// staged is the result of bringing two source operands into a form the ALU
// can read directly.
type staged struct {
	code  []*Instruction
	args  [2]int
	flags int
}

// stageSources loads RAM operands into the two scratch registers. The
// machine has a single RAM latch, so every RAM read is latch then move.
// Immediates are passed through and flagged.
func (e *Emitter) stageSources(a, b Value) staged {
	addrs := e.isa.Addresses
	scratch := [2]int{addrs.Scratch0, addrs.Scratch1}
	immFlag := [2]int{e.isa.Immediate0, e.isa.Immediate1}

	var s staged
	for i, v := range [2]Value{a, b} {
		switch v.Kind {
		case RAM:
			s.code = append(s.code,
				e.latch(v.Payload),
				e.move(Lit(addrs.RAM), false, scratch[i]),
			)
			s.args[i] = scratch[i]
		case Immediate:
			s.args[i] = v.Payload
			s.flags += immFlag[i]
		default:
			s.args[i] = v.Payload
		}
	}
	return s
}

// stageDest prepares a write target. A RAM destination is reached through
// the latch, so the operation then writes to the RAM register.
func (e *Emitter) stageDest(d Value, tok string) ([]*Instruction, int, error) {
	switch d.Kind {
	case Immediate:
		return nil, 0, failf(ErrInvalidDestination, tok, "cannot write to a constant")
	case RAM:
		return []*Instruction{e.latch(d.Payload)}, e.isa.Addresses.RAM, nil
	}
	return nil, d.Payload, nil
}

func (e *Emitter) destination(tok string) (Value, error) {
	d, err := e.resolve(tok)
	if err != nil {
		return Value{}, err
	}
	if !d.Writable() {
		return Value{}, failf(ErrInvalidDestination, tok, "cannot write to a constant")
	}
	return d, nil
}

// CONST name literal
func (e *Emitter) constant(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 2); err != nil {
		return nil, err
	}
	name, lit := line.Fields[1], line.Fields[2]
	if err := e.names.check(name); err != nil {
		return nil, err
	}
	n, err := ParseInt(lit)
	if err != nil {
		return nil, err
	}
	if e.scope().Exists(name, true) {
		return nil, failf(ErrDuplicateSymbol, name, "CONST %s already exists", name)
	}
	e.scope().Declare(name, Imm(n))
	return nil, nil
}

// SET dest src
func (e *Emitter) set(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 2); err != nil {
		return nil, err
	}
	dstTok, srcTok := line.Fields[1], line.Fields[2]

	src, err := e.resolve(srcTok)
	if err != nil {
		return nil, err
	}

	var dst Value
	if name, ok := strings.CutPrefix(dstTok, SigilVariable); ok && !e.scope().Exists(name, true) {
		if err := e.names.check(name); err != nil {
			return nil, err
		}
		dst, err = e.memory.Allocate()
		if err != nil {
			return nil, err
		}
		e.scope().Declare(name, dst)
	} else {
		dst, err = e.destination(dstTok)
		if err != nil {
			return nil, err
		}
	}

	addrs := e.isa.Addresses
	imm := src.Kind == Immediate
	switch dst.Kind {
	case RAM:
		if src.Kind == RAM {
			return []*Instruction{
				e.latch(src.Payload),
				e.move(Lit(addrs.RAM), false, addrs.Scratch0),
				e.latch(dst.Payload),
				e.move(Lit(addrs.Scratch0), false, addrs.RAM),
			}, nil
		}
		return []*Instruction{
			e.latch(dst.Payload),
			e.move(Lit(src.Payload), imm, addrs.RAM),
		}, nil
	default:
		if src.Kind == RAM {
			return []*Instruction{
				e.latch(src.Payload),
				e.move(Lit(addrs.RAM), false, dst.Payload),
			}, nil
		}
		return []*Instruction{e.move(Lit(src.Payload), imm, dst.Payload)}, nil
	}
}

// SETADR $dest src makes dest an alias of src's cell.
func (e *Emitter) setAddress(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 2); err != nil {
		return nil, err
	}
	dstTok, srcTok := line.Fields[1], line.Fields[2]

	name, ok := strings.CutPrefix(dstTok, SigilVariable)
	if !ok {
		return nil, failf(ErrInvalidDestination, dstTok, "SETADR needs a variable to alias")
	}
	src, err := e.resolve(srcTok)
	if err != nil {
		return nil, err
	}
	if src.Kind == Immediate {
		return nil, failf(ErrInvalidDestination, srcTok, "cannot alias a constant")
	}
	if !e.scope().Exists(name, false) {
		if err := e.names.check(name); err != nil {
			return nil, err
		}
	}
	e.scope().Declare(name, src)
	return nil, nil
}

// UNSET $a $b ... removes bindings from the current scope only.
func (e *Emitter) unset(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 1); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(line.Fields)-1)
	for _, tok := range line.Fields[1:] {
		name, ok := strings.CutPrefix(tok, SigilVariable)
		if !ok {
			return nil, failf(ErrUnresolvedSymbol, tok, "UNSET takes variables")
		}
		if !e.scope().Exists(name, false) {
			return nil, failf(ErrUnresolvedSymbol, tok, "variable %s is not declared in scope %s", name, e.scope().Name)
		}
		names = append(names, name)
	}
	for _, name := range names {
		e.scope().Remove(name)
	}
	return nil, nil
}

// ADD/SUB a b dest and MUL/DIV LOW|HIGH a b dest.
func (e *Emitter) arith(line SourceLine, op int, hasWord bool) ([]*Instruction, error) {
	first := 1
	word := 0
	if hasWord {
		if err := need(line, 4); err != nil {
			return nil, err
		}
		high, err := wordSelect(line.Fields[1])
		if err != nil {
			return nil, err
		}
		if high {
			word = e.isa.WordHigh
		}
		first = 2
	} else if err := need(line, 3); err != nil {
		return nil, err
	}

	ops, dest, err := e.operands(line.Fields[first:first+3], true)
	if err != nil {
		return nil, err
	}
	code, target, err := e.stageDest(dest, line.Fields[first+2])
	if err != nil {
		return nil, err
	}
	code = append(ops.code, code...)
	code = append(code, &Instruction{
		Opcode: e.isa.ALU + op + word + ops.flags,
		Args:   [3]Operand{Lit(ops.args[0]), Lit(ops.args[1]), Lit(target)},
	})
	return code, nil
}

// operands resolves "a b [dest]" and stages a and b.
func (e *Emitter) operands(toks []string, withDest bool) (staged, Value, error) {
	a, err := e.resolve(toks[0])
	if err != nil {
		return staged{}, Value{}, err
	}
	b, err := e.resolve(toks[1])
	if err != nil {
		return staged{}, Value{}, err
	}
	var dest Value
	if withDest {
		dest, err = e.destination(toks[2])
		if err != nil {
			return staged{}, Value{}, err
		}
	}
	return e.stageSources(a, b), dest, nil
}

// compare handles EQ NEQ SM SMEQ GR GREQ ALW NVR. In a condition head it
// emits a conditional jump with a placeholder target; otherwise it stores
// the comparison result in dest.
func (e *Emitter) compare(line SourceLine, code int, mode Mode) ([]*Instruction, error) {
	base := e.isa.Condition + code
	if mode == ModeConditionHead {
		if err := need(line, 2); err != nil {
			return nil, err
		}
		ops, _, err := e.operands(line.Fields[1:3], false)
		if err != nil {
			return nil, err
		}
		return append(ops.code, &Instruction{
			Opcode: base + e.isa.Jump + ops.flags,
			Args:   [3]Operand{Lit(ops.args[0]), Lit(ops.args[1]), Pending},
		}), nil
	}

	if err := need(line, 3); err != nil {
		return nil, err
	}
	ops, dest, err := e.operands(line.Fields[1:4], true)
	if err != nil {
		return nil, err
	}
	destCode, target, err := e.stageDest(dest, line.Fields[3])
	if err != nil {
		return nil, err
	}
	out := append(ops.code, destCode...)
	return append(out, &Instruction{
		Opcode: base + ops.flags,
		Args:   [3]Operand{Lit(ops.args[0]), Lit(ops.args[1]), Lit(target)},
	}), nil
}

// DEF name opens a callable block and a scope for its body.
func (e *Emitter) define(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 1); err != nil {
		return nil, err
	}
	name := line.Fields[1]
	if err := e.names.check(name); err != nil {
		return nil, err
	}
	if _, err := e.defs.Resolve(name); err == nil {
		return nil, failf(ErrDuplicateDefinition, name, "definition already exists")
	}
	parent := e.scope()
	scopeName := ChildName(parent, name)
	if _, ok := e.scopes.Get(scopeName); ok {
		return nil, failf(ErrDuplicateScope, scopeName, "scope already exists")
	}

	skip := e.jump(Pending, true)
	skip.Line = line.Number
	if e.cfg.Annotate {
		skip.Comment = "skip DEF " + name
	}
	def, err := e.defs.Begin(name, e.prog.Len(), skip)
	if err != nil {
		return nil, err
	}
	scope, err := e.scopes.OpenChild(scopeName, parent)
	if err != nil {
		return nil, err
	}
	def.Scope = scope
	def.Line = line.Number
	def.condDepth = e.conds.Depth()
	e.scopes.SetCurrent(scope)
	return nil, nil
}

// ENDDEF inserts the jump over the body at the patch site and returns from
// the body through the stack register.
func (e *Emitter) endDefine(line SourceLine) ([]*Instruction, error) {
	def, ok := e.defs.Current()
	if !ok {
		return nil, failf(ErrNotInDefinition, KwEndDef, "no definition is open")
	}
	if e.conds.Depth() != def.condDepth {
		return nil, failf(ErrInvalidContext, KwEndDef, "IF opened inside DEF %s is still open", def.Name)
	}
	if _, err := e.defs.End(); err != nil {
		return nil, err
	}

	ret := e.jump(Lit(e.isa.Addresses.Stack), false)
	def.Skip.Patch(After(ret))
	e.prog.Insert(def.PatchSite, def.Skip)
	e.scopes.SetCurrent(def.Scope.Parent)
	return []*Instruction{ret}, nil
}

// CALL name stores the return address in the stack register and jumps to
// the body. There is only one return cell, so calls do not nest.
func (e *Emitter) call(line SourceLine) ([]*Instruction, error) {
	if err := need(line, 1); err != nil {
		return nil, err
	}
	def, err := e.defs.Resolve(line.Fields[1])
	if err != nil {
		return nil, err
	}
	enter := e.jump(Addr(def.Entry), true)
	setReturn := e.move(Addr(After(enter)), true, e.isa.Addresses.Stack)
	return []*Instruction{setReturn, enter}, nil
}

// IF <cmp> a b opens a conditional block. The head jumps into the body when
// the comparison holds; otherwise execution falls onto the skip jump that
// ENDIF inserts in front of the body.
func (e *Emitter) ifHead(line SourceLine) ([]*Instruction, error) {
	head := SourceLine{Number: line.Number, Fields: line.Fields[1:]}
	if len(line.Columns) > 1 {
		head.Columns = line.Columns[1:]
	}
	code, err := e.process(head, ModeConditionHead)
	if err != nil {
		return nil, err
	}

	skip := e.jump(Pending, true)
	skip.Line = line.Number
	if e.cfg.Annotate {
		skip.Comment = "skip IF"
	}
	body := After(skip)
	for _, ins := range code {
		if ins.Deferred() {
			ins.Patch(body)
		}
	}

	// The head is not appended yet, so the patch site lies past it.
	e.conds.Open(&Condition{
		PatchSite: e.prog.Len() + len(code),
		Skip:      skip,
		Body:      body,
		Line:      line.Number,
		defDepth:  e.defs.Depth(),
	})
	return code, nil
}

// ENDIF inserts the skip jump in front of the body. It lands on whatever
// follows the block.
func (e *Emitter) endIf(line SourceLine) ([]*Instruction, error) {
	cond, ok := e.conds.Current()
	if !ok {
		return nil, failf(ErrNotInCondition, KwEndIf, "no IF is open")
	}
	if e.defs.Depth() != cond.defDepth {
		return nil, failf(ErrInvalidContext, KwEndIf, "DEF opened inside IF on line %d is still open", cond.Line)
	}
	if _, err := e.conds.Close(); err != nil {
		return nil, err
	}

	e.prog.Insert(cond.PatchSite, cond.Skip)
	cond.Skip.Patch(After(e.prog.Last()))
	return nil, nil
}
