package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"tcasm/pkg/asm"
	"tcasm/pkg/utils"
)

var packCmd = &cobra.Command{
	Use:   "pack listingFile",
	Short: "Pack a text listing into a binary image",
	Long: `Pack reads an "opcode a b c" listing, as written by "build" or
edited by hand, and writes the four byte image plus a .map file that
maps every instruction address to its listing line.`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

var disasmCmd = &cobra.Command{
	Use:   "disasm imageFile",
	Short: "Print a binary image as a text listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	packCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: input with .bin extension)")
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(disasmCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	inPath, _, err := utils.GetPathInfo(args[0])
	if err != nil {
		return err
	}
	listing, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read input file %q: %w", inPath, err)
	}
	image, sourceMap, err := asm.Assemble(string(listing))
	if err != nil {
		return fmt.Errorf("packing failed: %w", err)
	}

	output := outPath
	if output == "" {
		output = utils.OutputPath(inPath, ".bin")
	}
	if err := os.WriteFile(output, image, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", output, err)
	}
	mapPath, err := writeSourceMap(output, sourceMap)
	if err != nil {
		return err
	}
	log.Printf("source map -> %s", mapPath)
	fmt.Printf("packed %d bytes -> %s\n", len(image), au.Green(output))
	return nil
}

func runDisasm(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image %q: %w", args[0], err)
	}
	text, err := asm.Disassemble(image)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}
