package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"

	"tcasm/pkg/compiler"
)

const testSource = `CONST limit 10
SET $x 0
DEF bump
ADD $x 1 $x
ENDDEF
IF SM $x limit
CALL bump
ENDIF
`

func main() {
	dump := flag.Bool("dump", false, "dump the emitter state after translation")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()
	au := aurora.NewAurora(!*noColor)

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	lines, err := compiler.Tokenize(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, au.Red(fmt.Sprint("tokenize error: ", err)))
		os.Exit(1)
	}

	fmt.Println(au.Bold(fmt.Sprintf("Statements (%d)", len(lines))))
	for _, l := range lines {
		fmt.Printf("  %3d:%-3d %q\n", l.Number, l.Column(0), l.Fields)
	}
	fmt.Println()

	e := compiler.NewEmitter(compiler.Config{Annotate: true})
	if err := e.Run(src); err != nil {
		fmt.Fprintln(os.Stderr, au.Red(fmt.Sprint("translate error: ", err)))
		os.Exit(1)
	}
	prog, err := e.Finish()
	if err != nil {
		fmt.Fprintln(os.Stderr, au.Red(fmt.Sprint("translate error: ", err)))
		os.Exit(1)
	}
	words, err := prog.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, au.Red(fmt.Sprint("relocation error: ", err)))
		os.Exit(1)
	}

	fmt.Println(au.Bold("Instructions"))
	sourceMap := prog.SourceMap()
	for i, w := range words {
		addr := compiler.Address(i)
		fmt.Printf("  %s  %s  %s\n", au.Blue(fmt.Sprintf("%4d", addr)), au.Magenta(fmt.Sprintf("L%-3d", sourceMap[addr])), w)
	}
	fmt.Println()

	fmt.Println(au.Bold("Definitions"))
	for _, def := range e.Definitions().All() {
		entry, _ := prog.AddressOf(def.Entry)
		fmt.Printf("  %-16s entry %-4d scope %s\n", def.Name, entry, def.Scope.Name)
	}
	fmt.Println()

	fmt.Println(au.Bold(fmt.Sprintf("RAM (%d used, %d free)", e.Memory().Used(), e.Memory().Free())))
	fmt.Println()
	fmt.Print(e.Scopes())

	if *dump {
		fmt.Println()
		spew.Dump(words)
	}
}
