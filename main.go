package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"tcasm/pkg/compiler"
	"tcasm/pkg/isa"
)

var (
	isaPath  string
	annotate bool
	verbose  bool
	noColor  bool

	au = aurora.NewAurora(true)
)

var rootCmd = &cobra.Command{
	Use:   "tcasm",
	Short: "Translator for the accumulator CPU statement language",
	Long: `tcasm turns statement programs (CONST, SET, ADD, DEF, IF and friends)
into the four byte instruction format of the accumulator CPU.

Use "tcasm build" to translate a file and "tcasm repl" to type
statements interactively and watch the instructions they produce.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		au = aurora.NewAurora(!noColor)
		log.SetFlags(0)
		log.SetPrefix("tcasm: ")
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&isaPath, "isa", "", "JSON file overriding the instruction set table")
	pf.BoolVar(&annotate, "annotate", false, "attach each source statement as a comment to its first instruction")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log translation progress to stderr")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
}

// translatorConfig builds the compiler configuration from the global flags.
func translatorConfig() (compiler.Config, error) {
	cfg := compiler.Config{Annotate: annotate}
	if isaPath == "" {
		cfg.ISA = isa.Default()
		return cfg, nil
	}
	table, err := isa.Load(isaPath)
	if err != nil {
		return cfg, err
	}
	log.Printf("loaded instruction set from %s", isaPath)
	cfg.ISA = table
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, au.Red(err.Error()))
		os.Exit(1)
	}
}
