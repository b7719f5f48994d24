package compiler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"tcasm/pkg/isa"
)

func mustCompile(t *testing.T, src string, cfg Config) []string {
	t.Helper()
	lines, err := Compile(src, cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v\nsource:\n%s", err, src)
	}
	return lines
}

func feedAll(t *testing.T, e *Emitter, stmts ...string) {
	t.Helper()
	for i, s := range stmts {
		if _, err := e.Feed(TokenizeLine(s, i+1)); err != nil {
			t.Fatalf("Feed(%q) failed: %v", s, err)
		}
	}
}

func TestCompileSequences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Constants emit nothing",
			input:    "CONST zero 0b00111111",
			expected: []string{},
		},
		{
			name:  "Set immediate into fresh variable",
			input: "SET $num 231",
			expected: []string{
				"128 0 0 3",
				"128 231 0 0",
			},
		},
		{
			name:  "Set constant into register",
			input: "CONST c 9\nSET $RESL $c",
			expected: []string{
				"128 9 0 6",
			},
		},
		{
			name:  "Set register into register",
			input: "SET ~4 ~7",
			expected: []string{
				"0 7 0 4",
			},
		},
		{
			name:  "Set RAM into register",
			input: "SET $a 1\nSET $TMP1 $a",
			expected: []string{
				"128 0 0 3",
				"128 1 0 0",
				"128 0 0 3",
				"0 0 0 5",
			},
		},
		{
			name:  "Set RAM into RAM goes through scratch",
			input: "SET $a 1\nSET $b $a",
			expected: []string{
				"128 0 0 3",
				"128 1 0 0",
				"128 0 0 3",
				"0 0 0 4",
				"128 1 0 3",
				"0 4 0 0",
			},
		},
		{
			name:  "Set register into RAM",
			input: "SET &20 ~6",
			expected: []string{
				"128 20 0 3",
				"0 6 0 0",
			},
		},
		{
			name:  "Add immediates into register",
			input: "ADD 2 3 $RESL",
			expected: []string{
				"193 2 3 6",
			},
		},
		{
			name:  "Sub register and immediate",
			input: "SUB ~6 1 ~6",
			expected: []string{
				"66 6 1 6",
			},
		},
		{
			name:  "Mul high word with RAM operands",
			input: "SET $a 1\nSET $b 2\nSET $c 0\nMUL HIGH $a $b $c",
			expected: []string{
				"128 0 0 3", "128 1 0 0",
				"128 1 0 3", "128 2 0 0",
				"128 2 0 3", "128 0 0 0",
				"128 0 0 3", "0 0 0 4",
				"128 1 0 3", "0 0 0 5",
				"128 2 0 3",
				"35 4 5 0",
			},
		},
		{
			name:  "Div low word selector is case insensitive",
			input: "DIV low 8 ~4 ~7",
			expected: []string{
				"132 8 4 7",
			},
		},
		{
			name:  "Comparison computes without jumping",
			input: "SET $a 1\nGR $a 5 $RESL",
			expected: []string{
				"128 0 0 3", "128 1 0 0",
				"128 0 0 3", "0 0 0 4",
				"84 4 5 6",
			},
		},
		{
			name:  "Unknown keywords are ignored",
			input: "NOP 1 2\nSET ~4 1",
			expected: []string{
				"128 1 0 4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustCompile(t, tt.input, Config{})
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(tt.expected, "\n"))
			}
		})
	}
}

func TestIfBlock(t *testing.T) {
	src := `SET $x 1
IF EQ $x 1
SET $x 2
ENDIF
SET $x 3`
	want := []string{
		"128 0 0 3", "128 1 0 0",
		"128 0 0 3", "0 0 0 4",
		"88 4 1 24",
		"128 32 0 2",
		"128 0 0 3", "128 2 0 0",
		"128 0 0 3", "128 3 0 0",
	}
	got := mustCompile(t, src, Config{})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestIfResumeAddress(t *testing.T) {
	tests := []struct {
		name string
		body []string
	}{
		{"Empty body", nil},
		{"One statement", []string{"SET ~4 1"}},
		{"Nested", []string{"SET ~4 1", "IF NEQ ~4 2", "ADD 1 2 ~5", "ENDIF", "SET ~5 0"}},
		{"Definition inside", []string{"DEF inner", "SET ~4 9", "ENDDEF", "CALL inner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter(Config{})
			feedAll(t, e, "SET $x 0")
			if _, err := e.Feed(TokenizeLine("IF SMEQ $x 4", 2)); err != nil {
				t.Fatal(err)
			}
			cond, ok := e.conds.Current()
			if !ok {
				t.Fatal("IF did not open a condition")
			}
			for i, s := range tt.body {
				if _, err := e.Feed(TokenizeLine(s, 3+i)); err != nil {
					t.Fatalf("Feed(%q): %v", s, err)
				}
			}
			if _, err := e.Feed(TokenizeLine("ENDIF", 100)); err != nil {
				t.Fatal(err)
			}
			after := e.Program().Len()
			feedAll(t, e, "SET ~6 1")

			prog, err := e.Finish()
			if err != nil {
				t.Fatal(err)
			}
			words, err := prog.Resolve()
			if err != nil {
				t.Fatal(err)
			}
			skip, ok := prog.IndexOf(cond.Skip)
			if !ok {
				t.Fatal("skip jump was not inserted")
			}
			if got, want := words[skip].Args[0], 4*after; got != want {
				t.Errorf("resume address = %d, want %d\n%s", got, want, spew.Sdump(words))
			}
			// The conditional jump lands right behind the skip.
			if got, want := words[skip-1].Args[2], 4*(skip+1); got != want {
				t.Errorf("body address = %d, want %d", got, want)
			}
		})
	}
}

func TestDefinitionAndCalls(t *testing.T) {
	src := `DEF f
SET $y 7
ENDDEF
CALL f
CALL f`
	want := []string{
		"128 16 0 2",
		"128 0 0 3", "128 7 0 0",
		"0 1 0 2",
		"128 24 0 1", "128 4 0 2",
		"128 32 0 1", "128 4 0 2",
	}
	got := mustCompile(t, src, Config{})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestCallReturnAddresses(t *testing.T) {
	e := NewEmitter(Config{})
	feedAll(t, e, "SET $n 0", "DEF step", "ADD $n 1 $n", "ENDDEF", "SET ~4 1")

	var calls [][]*Instruction
	for i := 0; i < 3; i++ {
		out, err := e.Feed(TokenizeLine("CALL step", 10+i))
		if err != nil {
			t.Fatal(err)
		}
		calls = append(calls, out)
		feedAll(t, e, "SUB ~4 1 ~4")
	}

	prog, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	words, err := prog.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	def, err := e.Definitions().Resolve("step")
	if err != nil {
		t.Fatal(err)
	}
	entry, _ := prog.AddressOf(def.Entry)
	stack := e.ISA().Addresses.Stack

	for i, out := range calls {
		if len(out) != 2 {
			t.Fatalf("call %d produced %d instructions", i, len(out))
		}
		setIdx, _ := prog.IndexOf(out[0])
		jumpIdx, _ := prog.IndexOf(out[1])
		set, jump := words[setIdx], words[jumpIdx]
		if set.Args[2] != stack {
			t.Errorf("call %d stores into %d, want stack %d", i, set.Args[2], stack)
		}
		if want := 4 * (jumpIdx + 1); set.Args[0] != want {
			t.Errorf("call %d return address = %d, want %d", i, set.Args[0], want)
		}
		if jump.Args[0] != entry {
			t.Errorf("call %d jumps to %d, want entry %d", i, jump.Args[0], entry)
		}
	}

	// The skip jump lands right behind the return of the body.
	skipIdx, _ := prog.IndexOf(def.Skip)
	ret := words[words[skipIdx].Args[0]/4-1]
	if ret.Opcode != e.ISA().ALU+e.ISA().Move || ret.Args[0] != stack || ret.Args[2] != e.ISA().Addresses.ProgramCount {
		t.Errorf("return instruction = %v", ret)
	}
}

func TestNestedDefinitions(t *testing.T) {
	e := NewEmitter(Config{})
	feedAll(t, e, "DEF f", "DEF g", "SET $z 1", "ENDDEF", "ENDDEF")
	prog, err := e.Finish()
	if err != nil {
		t.Fatal(err)
	}
	lines, err := prog.Lines()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"128 24 0 2",
		"128 20 0 2",
		"128 0 0 3", "128 1 0 0",
		"0 1 0 2",
		"0 1 0 2",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}

	g, _ := e.Definitions().Resolve("g")
	if g.Scope.Name != "global.f.g" {
		t.Errorf("g scope = %q", g.Scope.Name)
	}
	if addr, _ := prog.AddressOf(g.Entry); addr != 8 {
		t.Errorf("g entry = %d, want 8", addr)
	}
	if e.CurrentScope() != e.Scopes().Root() {
		t.Errorf("scope after ENDDEF = %q, want global", e.CurrentScope().Name)
	}
	if _, err := e.Feed(TokenizeLine("SET ~4 $z", 6)); !errors.Is(err, ErrUnresolvedSymbol) {
		t.Errorf("body variable leaked out of its scope: %v", err)
	}
}

func TestDefinitionScope(t *testing.T) {
	e := NewEmitter(Config{})
	feedAll(t, e, "SET $v 1", "DEF f")
	if e.CurrentScope().Name != "global.f" {
		t.Fatalf("scope inside DEF = %q", e.CurrentScope().Name)
	}

	_, err := e.Feed(TokenizeLine("UNSET $v", 3))
	if !errors.Is(err, ErrUnresolvedSymbol) {
		t.Fatalf("UNSET of a parent variable: error = %v, want ErrUnresolvedSymbol", err)
	}
	// The parent binding survives and is still reachable.
	out, err := e.Feed(TokenizeLine("SET ~4 $v", 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Args[0].Value != 0 {
		t.Errorf("parent variable resolved to %s", spew.Sdump(out))
	}

	// A local of the same name shadows it and can be removed.
	feedAll(t, e, "SET $w 3")
	if !e.CurrentScope().Exists("w", false) {
		t.Fatal("local variable not declared in definition scope")
	}
	if _, err := e.Feed(TokenizeLine("UNSET $w", 6)); err != nil {
		t.Fatal(err)
	}
	if e.CurrentScope().Exists("w", false) {
		t.Error("UNSET left the local binding")
	}
}

func TestUnsetIsAtomic(t *testing.T) {
	e := NewEmitter(Config{})
	feedAll(t, e, "SET $a 1")
	if _, err := e.Feed(TokenizeLine("UNSET $a $missing", 2)); !errors.Is(err, ErrUnresolvedSymbol) {
		t.Fatalf("error = %v, want ErrUnresolvedSymbol", err)
	}
	if !e.CurrentScope().Exists("a", false) {
		t.Error("failed UNSET removed a binding")
	}
}

func TestConstUnsetScenario(t *testing.T) {
	e := NewEmitter(Config{})

	feedAll(t, e, "CONST zero 0b00111111")
	if v, ok := e.CurrentScope().Lookup("zero", false); !ok || v != Imm(63) {
		t.Fatalf("zero = %v, %v; want imm 63", v, ok)
	}

	out, err := e.Feed(TokenizeLine("SET $num 231", 2))
	if err != nil {
		t.Fatal(err)
	}
	first, _ := e.CurrentScope().Lookup("num", false)
	if first.Kind != RAM {
		t.Fatalf("num = %v, want a RAM cell", first)
	}
	if len(out) != 2 || out[0].Args[0].Value != first.Payload || out[1].Args[0].Value != 231 {
		t.Errorf("SET sequence = %s", spew.Sdump(out))
	}

	feedAll(t, e, "UNSET $num", "SET $num 5")
	second, _ := e.CurrentScope().Lookup("num", false)
	if second.Kind != RAM {
		t.Fatalf("num = %v, want a RAM cell", second)
	}
	if second == first {
		t.Errorf("re-SET reused occupied cell %d", first.Payload)
	}
	if e.Memory().Used() != 2 {
		t.Errorf("Used() = %d, want 2", e.Memory().Used())
	}
}

func TestOutOfMemory(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < RAMSize; i++ {
		fmt.Fprintf(&sb, "SET $v%d %d\n", i, i)
	}
	e := NewEmitter(Config{})
	if err := e.Run(sb.String()); err != nil {
		t.Fatalf("allocating %d variables failed: %v", RAMSize, err)
	}
	for i := 0; i < RAMSize; i++ {
		v, ok := e.CurrentScope().Lookup(fmt.Sprintf("v%d", i), false)
		if !ok || v != Cell(i) {
			t.Fatalf("v%d = %v, want %v", i, v, Cell(i))
		}
	}

	_, err := e.Feed(TokenizeLine("SET $overflow 1", RAMSize+1))
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("error = %v, want ErrOutOfMemory", err)
	}
}

func TestSetAddress(t *testing.T) {
	e := NewEmitter(Config{})
	feedAll(t, e, "SET $a 1", "SETADR $alias $a", "SETADR $io $IO", "SETADR $raw &40")

	scope := e.CurrentScope()
	tests := []struct {
		name string
		want Value
	}{
		{"alias", Cell(0)},
		{"io", Reg(12)},
		{"raw", Cell(40)},
	}
	for _, tt := range tests {
		if v, _ := scope.Lookup(tt.name, false); v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
	if e.Memory().Used() != 1 {
		t.Errorf("SETADR allocated memory: Used() = %d", e.Memory().Used())
	}
	if e.Program().Len() != 2 {
		t.Errorf("SETADR emitted instructions: Len() = %d", e.Program().Len())
	}
}

func TestAnnotate(t *testing.T) {
	src := "SET $x 1\nDEF f\nADD 1 2 $RESL\nENDDEF\nIF ALW 0 0\nENDIF"
	got := mustCompile(t, src, Config{Annotate: true})
	want := []string{
		"128 0 0 3 ; SET $x 1",
		"128 1 0 0",
		"128 20 0 2 ; skip DEF f",
		"193 1 2 6 ; ADD 1 2 $RESL",
		"0 1 0 2 ; ENDDEF",
		"222 0 0 28 ; IF ALW 0 0",
		"128 28 0 2 ; skip IF",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestTranslationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		line  int
	}{
		{"Const as SET destination", "CONST c 5\nSET $c 1", ErrInvalidDestination, 2},
		{"Const as ADD destination", "CONST c 5\nADD 1 2 $c", ErrInvalidDestination, 2},
		{"Const as MUL destination", "CONST c 5\nMUL LOW 1 2 $c", ErrInvalidDestination, 2},
		{"Const as compare destination", "CONST c 5\nEQ 1 2 $c", ErrInvalidDestination, 2},
		{"Literal destination", "SUB 1 2 7", ErrInvalidDestination, 1},
		{"Const redeclared", "CONST c 5\nCONST c 6", ErrDuplicateSymbol, 2},
		{"Const shadows variable", "SET $c 1\nCONST c 6", ErrDuplicateSymbol, 2},
		{"Definition redeclared", "DEF f\nENDDEF\nDEF f\nENDDEF", ErrDuplicateDefinition, 3},
		{"Unknown variable", "SET $x $nope", ErrUnresolvedSymbol, 1},
		{"Unknown definition", "CALL g", ErrUnresolvedSymbol, 1},
		{"Unset without sigil", "SET $x 1\nUNSET x", ErrUnresolvedSymbol, 2},
		{"Bad literal", "SET $x 0bGG", ErrMalformedLiteral, 1},
		{"Bad RAM address", "SET &1z 1", ErrMalformedLiteral, 1},
		{"Stray ENDDEF", "ENDDEF", ErrNotInDefinition, 1},
		{"Stray ENDIF", "ENDIF", ErrNotInCondition, 1},
		{"Non-comparison head", "IF SET $x 1\nENDIF", ErrInvalidContext, 1},
		{"Empty head", "IF\nENDIF", ErrInvalidContext, 1},
		{"Bad word selector", "MUL MID 1 2 $RESL", ErrInvalidContext, 1},
		{"ENDDEF with open IF", "DEF f\nIF EQ 1 1\nENDDEF\nENDIF", ErrInvalidContext, 3},
		{"ENDIF with open DEF", "IF EQ 1 1\nDEF f\nENDIF\nENDDEF", ErrInvalidContext, 3},
		{"Missing operand", "SET $a 1\n\nADD 1", ErrMissingOperand, 3},
		{"Missing head operand", "IF EQ 1\nENDIF", ErrMissingOperand, 1},
		{"Missing DEF name", "DEF", ErrMissingOperand, 1},
		{"Open DEF", "SET $a 1\nDEF f\nSET $b 2", ErrUnterminatedBlock, 2},
		{"Open IF", "IF EQ 1 1", ErrUnterminatedBlock, 1},
		{"Keyword as name", "CONST SET 1", ErrInvalidName, 1},
		{"Digit-led name", "SET $1x 2", ErrInvalidName, 1},
		{"Keyword as definition", "DEF ENDIF", ErrInvalidName, 1},
		{"SETADR without sigil", "SETADR x &5", ErrInvalidDestination, 1},
		{"SETADR of constant", "SETADR $x 5", ErrInvalidDestination, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := Compile(tt.input, Config{})
			if err == nil {
				t.Fatalf("expected %v, got listing:\n%s", tt.want, strings.Join(lines, "\n"))
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not a *Error", err)
			}
			if perr.Line != tt.line {
				t.Errorf("error line = %d, want %d (%v)", perr.Line, tt.line, err)
			}
		})
	}
}

func TestNamesMayContainKeywords(t *testing.T) {
	got := mustCompile(t, "CONST SETUP 1\nSET $IFX $SETUP\nDEF CALLER\nENDDEF", Config{})
	if len(got) != 4 {
		t.Errorf("listing = %v", got)
	}
}

func TestErrorMessage(t *testing.T) {
	_, err := Compile("SET $a 1\n  ADD 1 2 $nope", Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	want := `line 2:3: variable nope is not declared: unresolved symbol ("$nope")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEmitterIgnoresBlankStatements(t *testing.T) {
	e := NewEmitter(Config{})
	out, err := e.Feed(SourceLine{Number: 1})
	if err != nil || out != nil {
		t.Errorf("blank statement = %v, %v", out, err)
	}
}

func TestCustomConditionKeywords(t *testing.T) {
	table := isa.Default()
	table.Conditions = map[string]int{"BEQ": isa.CondEqual, "BNE": isa.CondNotEqual}
	cfg := Config{ISA: table}

	got := mustCompile(t, "CONST EQ 1\nIF BNE $EQ 2\nENDIF", cfg)
	want := []string{
		"217 1 2 8",
		"128 8 0 2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("listing mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	tests := []struct {
		input string
		want  error
	}{
		{"CONST BEQ 1", ErrInvalidName},
		{"SET $BNE 1", ErrInvalidName},
		{"IF EQ 1 1\nENDIF", ErrInvalidContext},
	}
	for _, tt := range tests {
		if _, err := Compile(tt.input, cfg); !errors.Is(err, tt.want) {
			t.Errorf("Compile(%q) error = %v, want %v", tt.input, err, tt.want)
		}
	}
}
