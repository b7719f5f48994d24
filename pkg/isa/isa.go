// Package isa holds the instruction-set constants of the target CPU: opcode
// flag bits, ALU operations, condition codes and the reserved register
// addresses. The translator treats a Table as opaque data; only bit
// disjointness of the flags matters to it.
package isa

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// InstructionWidth is the number of bytes occupied by one instruction:
// one opcode byte followed by three operand bytes.
const InstructionWidth = 4

const (
	FlagImmediate0 = 0b1000_0000
	FlagImmediate1 = 0b0100_0000
	FlagWordHigh   = 0b0010_0000
	GroupALU       = 0b0000_0000
	GroupCondition = 0b0001_0000
	FlagJump       = 0b0000_1000
)

const (
	AluMove     = 0b0000
	AluAdd      = 0b0001
	AluSubtract = 0b0010
	AluMultiply = 0b0011
	AluDivide   = 0b0100
	AluNot      = 0b0101
	AluAnd      = 0b0110
	AluNand     = 0b0111
	AluOr       = 0b1000
	AluNor      = 0b1001
	AluXor      = 0b1010
	AluXnor     = 0b1011
	AluShr      = 0b1100
	AluShl      = 0b1101
)

const (
	CondEqual        = 0b000
	CondNotEqual     = 0b001
	CondSmaller      = 0b010
	CondSmallerEqual = 0b011
	CondGreater      = 0b100
	CondGreaterEqual = 0b101
	CondAlways       = 0b110
	CondNever        = 0b111
)

// Addresses names the reserved register cells.
type Addresses struct {
	RAM           int `json:"ram"`
	Stack         int `json:"stack"`
	ProgramCount  int `json:"program_counter"`
	RAMLatch      int `json:"ram_address"`
	Scratch0      int `json:"scratch0"`
	Scratch1      int `json:"scratch1"`
	ResultLow     int `json:"result_low"`
	ResultHigh    int `json:"result_high"`
	SegmentToggle int `json:"segment_toggle"`
	UserStack     int `json:"user_stack"`
	IO            int `json:"io"`
}

// Table is the full set of numbers the translator composes opcodes from.
type Table struct {
	Immediate0 int `json:"immediate0"`
	Immediate1 int `json:"immediate1"`
	WordHigh   int `json:"word_high"`
	ALU        int `json:"alu"`
	Condition  int `json:"condition"`
	Jump       int `json:"jump"`

	Move     int `json:"move"`
	Add      int `json:"add"`
	Subtract int `json:"subtract"`
	Multiply int `json:"multiply"`
	Divide   int `json:"divide"`

	Conditions map[string]int `json:"conditions"`
	Addresses  Addresses      `json:"addresses"`
}

// Default returns the table of the reference CPU.
func Default() *Table {
	return &Table{
		Immediate0: FlagImmediate0,
		Immediate1: FlagImmediate1,
		WordHigh:   FlagWordHigh,
		ALU:        GroupALU,
		Condition:  GroupCondition,
		Jump:       FlagJump,

		Move:     AluMove,
		Add:      AluAdd,
		Subtract: AluSubtract,
		Multiply: AluMultiply,
		Divide:   AluDivide,

		Conditions: map[string]int{
			"EQ":   CondEqual,
			"NEQ":  CondNotEqual,
			"SM":   CondSmaller,
			"SMEQ": CondSmallerEqual,
			"GR":   CondGreater,
			"GREQ": CondGreaterEqual,
			"ALW":  CondAlways,
			"NVR":  CondNever,
		},
		Addresses: Addresses{
			RAM:           0,
			Stack:         1,
			ProgramCount:  2,
			RAMLatch:      3,
			Scratch0:      4,
			Scratch1:      5,
			ResultLow:     6,
			ResultHigh:    7,
			SegmentToggle: 8,
			UserStack:     11,
			IO:            12,
		},
	}
}

// Load reads a JSON encoded table from path and validates it. Fields the
// document leaves out keep their default values; a conditions object
// replaces the whole keyword table.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("isa table %s: %w", path, err)
	}
	t := Default()
	// A conditions object replaces the keyword table instead of merging
	// into it, so keywords can be renamed or dropped.
	if _, ok := keys["conditions"]; ok {
		t.Conditions = nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("isa table %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("isa table %s: %w", path, err)
	}
	return t, nil
}

// ConditionCode returns the code of a comparison keyword.
func (t *Table) ConditionCode(keyword string) (int, bool) {
	c, ok := t.Conditions[keyword]
	return c, ok
}

// ConditionKeywords returns the comparison keywords in sorted order.
func (t *Table) ConditionKeywords() []string {
	names := make([]string, 0, len(t.Conditions))
	for name := range t.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the flag bits can be summed without carrying into
// each other: the immediate, word select, group and jump flags must be
// pairwise disjoint, and no ALU or condition code may touch them.
func (t *Table) Validate() error {
	flags := []struct {
		name  string
		value int
	}{
		{"immediate0", t.Immediate0},
		{"immediate1", t.Immediate1},
		{"word_high", t.WordHigh},
		{"condition", t.Condition},
		{"jump", t.Jump},
	}

	used := 0
	for _, f := range flags {
		if f.value <= 0 {
			return fmt.Errorf("flag %s must be a positive bit mask, got %d", f.name, f.value)
		}
		if used&f.value != 0 {
			return fmt.Errorf("flag %s (%#b) overlaps another flag", f.name, f.value)
		}
		used |= f.value
	}
	if t.ALU&used != 0 {
		return fmt.Errorf("alu group %#b overlaps a flag", t.ALU)
	}

	ops := map[string]int{
		"move":     t.Move,
		"add":      t.Add,
		"subtract": t.Subtract,
		"multiply": t.Multiply,
		"divide":   t.Divide,
	}
	if err := checkCodes("alu operation", ops, used); err != nil {
		return err
	}
	if len(t.Conditions) == 0 {
		return fmt.Errorf("condition table is empty")
	}
	return checkCodes("condition", t.Conditions, used)
}

func checkCodes(kind string, codes map[string]int, flags int) error {
	names := make([]string, 0, len(codes))
	for name := range codes {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[int]string)
	for _, name := range names {
		code := codes[name]
		if code < 0 {
			return fmt.Errorf("%s %s has negative code %d", kind, name, code)
		}
		if code&flags != 0 {
			return fmt.Errorf("%s %s (%#b) overlaps a flag bit", kind, name, code)
		}
		if other, ok := seen[code]; ok {
			return fmt.Errorf("%s %s shares code %d with %s", kind, name, code, other)
		}
		seen[code] = name
	}
	return nil
}
