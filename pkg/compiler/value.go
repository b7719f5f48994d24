package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Operand sigils.
const (
	SigilVariable = "$"
	SigilRAM      = "&"
	SigilRegister = "~"
)

// Kind is the addressing mode of a Value.
type Kind int

const (
	Immediate Kind = iota
	Register
	RAM
)

func (k Kind) String() string {
	switch k {
	case Immediate:
		return "imm"
	case Register:
		return "reg"
	case RAM:
		return "ram"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value says where an operand lives and carries its number: the constant
// itself for Immediate, a cell index for Register and RAM.
type Value struct {
	Kind    Kind
	Payload int
}

func Imm(v int) Value  { return Value{Kind: Immediate, Payload: v} }
func Reg(v int) Value  { return Value{Kind: Register, Payload: v} }
func Cell(v int) Value { return Value{Kind: RAM, Payload: v} }

// Writable reports whether the value may be used as a destination.
func (v Value) Writable() bool { return v.Kind != Immediate }

// Token renders the value back in source syntax.
func (v Value) Token() string {
	switch v.Kind {
	case Register:
		return SigilRegister + strconv.Itoa(v.Payload)
	case RAM:
		return SigilRAM + strconv.Itoa(v.Payload)
	}
	return strconv.Itoa(v.Payload)
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%d)", v.Kind, v.Payload)
}

// ParseInt parses an integer literal. The prefixes 0b, 0x and 0d select
// binary, hexadecimal and decimal; anything else is read as decimal. A sign
// is only accepted on decimal literals.
func ParseInt(s string) (int, error) {
	base := 10
	body := s
	switch {
	case strings.HasPrefix(s, "0b"):
		base, body = 2, s[2:]
	case strings.HasPrefix(s, "0x"):
		base, body = 16, s[2:]
	case strings.HasPrefix(s, "0d"):
		body = s[2:]
	}
	if body == "" {
		return 0, failf(ErrMalformedLiteral, s, "empty literal")
	}
	// Only decimal literals carry a sign.
	if base != 10 && (body[0] == '-' || body[0] == '+') {
		return 0, failf(ErrMalformedLiteral, s, "signed base %d literal", base)
	}
	n, err := strconv.ParseInt(body, base, 32)
	if err != nil {
		return 0, failf(ErrMalformedLiteral, s, "not a base %d integer", base)
	}
	return int(n), nil
}

// Resolve turns an operand token into a Value. Variables are looked up in
// scope, walking the parent chain when searchParents is set; raw RAM and
// register addresses are not bounds checked.
func Resolve(token string, scope *Scope, searchParents bool) (Value, error) {
	switch {
	case strings.HasPrefix(token, SigilVariable):
		name := token[len(SigilVariable):]
		v, ok := scope.Lookup(name, searchParents)
		if !ok {
			return Value{}, failf(ErrUnresolvedSymbol, token, "variable %s is not declared", name)
		}
		return v, nil
	case strings.HasPrefix(token, SigilRAM):
		n, err := ParseInt(token[len(SigilRAM):])
		if err != nil {
			return Value{}, err
		}
		return Cell(n), nil
	case strings.HasPrefix(token, SigilRegister):
		n, err := ParseInt(token[len(SigilRegister):])
		if err != nil {
			return Value{}, err
		}
		return Reg(n), nil
	}

	n, err := ParseInt(token)
	if err != nil {
		return Value{}, err
	}
	return Imm(n), nil
}
