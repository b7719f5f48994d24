// Package asm packs instruction listings into the binary image loaded by
// the CPU: four bytes per instruction, opcode first.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"tcasm/pkg/compiler"
	"tcasm/pkg/isa"
)

// Assemble packs a text listing as produced by compiler.Program.Lines.
// Comments start with ";" or "//". The returned source map is keyed by
// byte address and holds listing line numbers.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")
	program := make([]byte, 0, len(lines)*isa.InstructionWidth)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		fields := listingFields(raw)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != isa.InstructionWidth {
			return nil, nil, fmt.Errorf("expected %d fields on line %d, got %d", isa.InstructionWidth, lineNo, len(fields))
		}
		if len(program) > 0xFFFF {
			return nil, nil, fmt.Errorf("program too large near line %d", lineNo)
		}

		sourceMap[uint16(len(program))] = lineNo
		for _, f := range fields {
			b, err := parseByte(f, lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, b)
		}
	}
	return program, sourceMap, nil
}

// Pack encodes resolved words. The source map points at source statement
// lines.
func Pack(words []compiler.Word) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0, len(words)*isa.InstructionWidth)
	sourceMap := make(map[uint16]int, len(words))
	for i, w := range words {
		addr := compiler.Address(i)
		if addr > 0xFFFF {
			return nil, nil, fmt.Errorf("program too large at instruction %d", i)
		}
		sourceMap[uint16(addr)] = w.Line

		fields := [isa.InstructionWidth]int{w.Opcode, w.Args[0], w.Args[1], w.Args[2]}
		for _, v := range fields {
			b, err := toByte(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%v in instruction %d (source line %d)", err, i, w.Line)
			}
			program = append(program, b)
		}
	}
	return program, sourceMap, nil
}

// Disassemble renders an image back into listing text.
func Disassemble(image []byte) (string, error) {
	if len(image)%isa.InstructionWidth != 0 {
		return "", fmt.Errorf("image length %d is not a multiple of %d", len(image), isa.InstructionWidth)
	}
	var sb strings.Builder
	for i := 0; i < len(image); i += isa.InstructionWidth {
		fmt.Fprintf(&sb, "%d %d %d %d\n", image[i], image[i+1], image[i+2], image[i+3])
	}
	return sb.String(), nil
}

// listingFields returns the numeric fields of a listing line. Everything
// from the first ";" or "//" on is commentary.
func listingFields(raw string) []string {
	code, _, _ := strings.Cut(raw, ";")
	code, _, _ = strings.Cut(code, "//")
	return strings.Fields(code)
}

// WriteSourceMap writes one "address line" pair per instruction, in address
// order.
func WriteSourceMap(w io.Writer, sourceMap map[uint16]int) error {
	addrs := make([]int, 0, len(sourceMap))
	for addr := range sourceMap {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)
	bw := bufio.NewWriter(w)
	for _, addr := range addrs {
		fmt.Fprintf(bw, "%d %d\n", addr, sourceMap[uint16(addr)])
	}
	return bw.Flush()
}

func parseByte(token string, lineNo int) (byte, error) {
	v, err := strconv.ParseInt(token, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s' on line %d", token, lineNo)
	}
	b, err := toByte(int(v))
	if err != nil {
		return 0, fmt.Errorf("%v on line %d", err, lineNo)
	}
	return b, nil
}

// toByte accepts unsigned bytes and negative values that fit in a signed
// byte, which are stored in two's complement.
func toByte(v int) (byte, error) {
	if v < -128 || v > 255 {
		return 0, fmt.Errorf("value %d does not fit in a byte", v)
	}
	return byte(v), nil
}
