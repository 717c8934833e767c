package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/pcs/internal/compiler"
)

var compileCmd = &cobra.Command{
	Use:          "compile <file>",
	Short:        "Compile a Dart sample",
	Long:         `Compile a single Dart sample to JavaScript and print the result or write it to --out.`,
	RunE:         runCompile,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

func init() {
	compileCmd.Flags().BoolP("incremental", "i", false, "Use an incremental compiler worker instead of the batch build")
	compileCmd.Flags().BoolP("source-map", "m", false, "Also write the source map (requires --out)")
	compileCmd.Flags().StringP("out", "o", "", "Output file for the compiled JavaScript")
}

func runCompile(cmd *cobra.Command, args []string) error {
	file := args[0]
	if filepath.Ext(file) != ".dart" {
		return fmt.Errorf("file must have .dart extension")
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	incremental, _ := cmd.Flags().GetBool("incremental")
	sourceMap, _ := cmd.Flags().GetBool("source-map")
	out, _ := cmd.Flags().GetString("out")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var res *compiler.Result
	if incremental {
		res, err = a.compiler.CompileDDC(cmd.Context(), string(source))
	} else {
		res, err = a.compiler.Compile(cmd.Context(), string(source), sourceMap && out != "")
	}

	if err != nil {
		return err
	}

	if !res.Success() {
		reportProblems(cmd.ErrOrStderr(), file, res.Problems)
		return fmt.Errorf("compilation failed with %d problem(s)", len(res.Problems))
	}

	return writeResult(cmd.OutOrStdout(), res, out)
}

func reportProblems(w io.Writer, file string, problems []compiler.Problem) {
	for _, p := range problems {
		fmt.Fprintf(w, "%s: %s\n", file, p.Message)
	}
}

// writeResult writes the compiled output to out, or w when out is empty
func writeResult(w io.Writer, res *compiler.Result, out string) error {
	if out == "" {
		_, err := io.WriteString(w, res.CompiledJS)
		return err
	}

	if err := os.WriteFile(out, []byte(res.CompiledJS), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	if res.SourceMap != "" {
		if err := os.WriteFile(out+".map", []byte(res.SourceMap), 0o644); err != nil {
			return fmt.Errorf("failed to write source map: %w", err)
		}
	}

	if res.ModulesBaseURL != "" {
		fmt.Fprintf(w, "Modules base URL: %s\n", res.ModulesBaseURL)
	}

	return nil
}
