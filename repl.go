package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"tcasm/pkg/compiler"
)

const historyFile = ".tcasm_history"

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Translate statements interactively",
	Long: `Repl reads one statement per line and prints the instructions it
produced. Jump targets that depend on a block which is still open are
shown as "?" until the block closes.

Commands: :list prints the whole program, :scopes dumps every scope,
:defs lists the definitions, :reset starts over, :quit leaves.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

type session struct {
	e    *compiler.Emitter
	line int
	out  io.Writer
}

func newSession(cfg compiler.Config, out io.Writer) *session {
	return &session{e: compiler.NewEmitter(cfg), out: out}
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := translatorConfig()
	if err != nil {
		return err
	}
	s := newSession(cfg, os.Stdout)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintln(s.out, "tcasm repl, :quit to leave")
	for {
		text, err := ln.Prompt(s.prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			break
		}
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		ln.AppendHistory(text)
		if !s.handle(text) {
			break
		}
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// prompt names the current scope and, inside IF bodies, the nesting depth.
func (s *session) prompt() string {
	if n := s.e.OpenConditions(); n > 0 {
		return fmt.Sprintf("%s if%d> ", s.e.CurrentScope().Name, n)
	}
	return s.e.CurrentScope().Name + "> "
}

// handle runs one prompt line. It returns false when the session should end.
func (s *session) handle(text string) bool {
	switch text {
	case ":quit", ":q":
		return false
	case ":list":
		s.list()
		return true
	case ":scopes":
		fmt.Fprint(s.out, s.e.Scopes())
		return true
	case ":defs":
		s.definitions()
		return true
	case ":reset":
		s.e = compiler.NewEmitter(s.e.Config())
		s.line = 0
		fmt.Fprintln(s.out, au.Bold("program cleared"))
		return true
	}
	if strings.HasPrefix(text, ":") {
		fmt.Fprintln(s.out, au.Red("unknown command "+text))
		return true
	}

	s.line++
	prog := s.e.Program()
	before := prog.Len()
	out, err := s.e.Feed(compiler.TokenizeLine(text, s.line))
	if err != nil {
		fmt.Fprintln(s.out, au.Red(err.Error()))
		return true
	}
	for _, ins := range out {
		s.print(ins)
	}
	if inserted := prog.Len() - before - len(out); inserted > 0 {
		fmt.Fprintln(s.out, au.Magenta(fmt.Sprintf("  %d skip jump inserted, addresses after it moved; :list shows the program", inserted)))
	}
	return true
}

func (s *session) print(ins *compiler.Instruction) {
	prog := s.e.Program()
	idx, _ := prog.IndexOf(ins)
	fmt.Fprintf(s.out, "%s  %s\n", au.Blue(fmt.Sprintf("%4d", compiler.Address(idx))), prog.Format(ins))
}

func (s *session) definitions() {
	prog := s.e.Program()
	for _, def := range s.e.Definitions().All() {
		state := "closed"
		if !def.Closed {
			state = "open"
		}
		entry := "?"
		if addr, ok := prog.AddressOf(def.Entry); ok {
			entry = strconv.Itoa(addr)
		}
		fmt.Fprintf(s.out, "%-16s entry %-4s %s\n", def.Name, entry, au.Magenta(state))
	}
}

func (s *session) list() {
	prog := s.e.Program()
	for i := 0; i < prog.Len(); i++ {
		s.print(prog.At(i))
	}
}
