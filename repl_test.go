package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/logrusorgru/aurora"

	"tcasm/pkg/compiler"
)

func TestReplSession(t *testing.T) {
	au = aurora.NewAurora(false)
	var out bytes.Buffer
	s := newSession(compiler.Config{}, &out)

	steps := []struct {
		input string
		want  []string
		alive bool
	}{
		{"SET $x 1", []string{"   0  128 0 0 3", "   4  128 1 0 0"}, true},
		{"DEF f", nil, true},
		{"ADD 1 2 $RESL", []string{"   8  193 1 2 6"}, true},
		{"ENDDEF", []string{"  16  0 1 0 2", "1 skip jump inserted"}, true},
		{"SET $nope $missing", []string{"unresolved symbol"}, true},
		{":list", []string{"   8  128 20 0 2", "  12  193 1 2 6"}, true},
		{":scopes", []string{"Scope global.f (parent: global)"}, true},
		{":defs", []string{"entry 12", "closed"}, true},
		{":bogus", []string{"unknown command :bogus"}, true},
		{":reset", []string{"program cleared"}, true},
		{":quit", nil, false},
	}

	for _, st := range steps {
		out.Reset()
		if alive := s.handle(st.input); alive != st.alive {
			t.Fatalf("handle(%q) = %v, want %v", st.input, alive, st.alive)
		}
		for _, w := range st.want {
			if !strings.Contains(out.String(), w) {
				t.Errorf("handle(%q) output missing %q:\n%s", st.input, w, out.String())
			}
		}
	}

	if s.e.Program().Len() != 0 {
		t.Errorf("program not cleared by :reset")
	}
	if s.prompt() != "global> " {
		t.Errorf("prompt = %q", s.prompt())
	}
}

func TestReplPendingJump(t *testing.T) {
	au = aurora.NewAurora(false)
	var out bytes.Buffer
	s := newSession(compiler.Config{}, &out)
	s.handle("IF EQ 1 1")
	if !strings.Contains(out.String(), "216 1 1 ?") {
		t.Errorf("open IF head should show an unresolved target:\n%s", out.String())
	}
	if s.prompt() != "global if1> " {
		t.Errorf("prompt = %q", s.prompt())
	}

	out.Reset()
	s.handle("DEF g")
	s.handle(":defs")
	if !strings.Contains(out.String(), "entry ?") || !strings.Contains(out.String(), "open") {
		t.Errorf("open definition listing:\n%s", out.String())
	}
}
