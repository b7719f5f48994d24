// Package compiler translates the line-oriented statement language into
// instructions for the accumulator CPU in a single pass.
//
// Pipeline: source → Tokenize → Emitter.Feed per statement → Program.Resolve
// → "opcode a b c" lines (or packed bytes, see package asm).
//
// Jumps over DEF and IF bodies are inserted in front of the body when the
// block closes; every address operand is therefore a label that is only
// turned into a number once the buffer is final.
package compiler
