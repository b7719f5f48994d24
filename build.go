package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tcasm/pkg/asm"
	"tcasm/pkg/compiler"
	"tcasm/pkg/utils"
)

var (
	outPath string
	format  string
)

var buildCmd = &cobra.Command{
	Use:   "build sourceFile",
	Short: "Translate a statement file into an instruction listing or image",
	Long: `Build translates exactly one source file. The default text format
writes one "opcode a b c" line per instruction; the bin format packs the
same instructions into four bytes each, ready to load into the CPU, and
writes a .map file next to the image that maps every instruction address
to its source line.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: input with .tc or .bin extension)")
	buildCmd.Flags().StringVar(&format, "format", "text", "output format: text or bin")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if format != "text" && format != "bin" {
		return fmt.Errorf("unknown format %q, want text or bin", format)
	}
	cfg, err := translatorConfig()
	if err != nil {
		return err
	}

	inPath, _, err := utils.GetPathInfo(args[0])
	if err != nil {
		return err
	}
	source, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read input file %q: %w", inPath, err)
	}
	log.Printf("translating %s", inPath)

	e := compiler.NewEmitter(cfg)
	if err := e.Run(string(source)); err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	prog, err := e.Finish()
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	words, err := prog.Resolve()
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	log.Printf("%d instructions, %d RAM cells, %d definitions", len(words), e.Memory().Used(), len(e.Definitions().All()))

	var (
		data      []byte
		sourceMap map[uint16]int
	)
	ext := ".tc"
	switch format {
	case "bin":
		data, sourceMap, err = asm.Pack(words)
		if err != nil {
			return fmt.Errorf("packing failed: %w", err)
		}
		ext = ".bin"
	default:
		var sb strings.Builder
		for _, w := range words {
			sb.WriteString(w.String())
			sb.WriteByte('\n')
		}
		data = []byte(sb.String())
	}

	output := outPath
	if output == "" {
		output = utils.OutputPath(inPath, ext)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", output, err)
	}
	fmt.Printf("translated %d instructions -> %s\n", len(words), au.Green(output))

	if sourceMap != nil {
		mapPath, err := writeSourceMap(output, sourceMap)
		if err != nil {
			return err
		}
		log.Printf("source map -> %s", mapPath)
	}
	return nil
}

// writeSourceMap stores the address to source line map next to the image.
func writeSourceMap(imagePath string, sourceMap map[uint16]int) (string, error) {
	mapPath := utils.OutputPath(imagePath, ".map")
	f, err := os.Create(mapPath)
	if err != nil {
		return "", fmt.Errorf("failed to write %q: %w", mapPath, err)
	}
	defer f.Close()
	if err := asm.WriteSourceMap(f, sourceMap); err != nil {
		return "", fmt.Errorf("failed to write %q: %w", mapPath, err)
	}
	return mapPath, nil
}
