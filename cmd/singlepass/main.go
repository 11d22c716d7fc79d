package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tetratelabs/singlepass/internal/asm/arm64"
	"github.com/tetratelabs/singlepass/internal/compiler"
	"github.com/tetratelabs/singlepass/internal/config"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/logging"
	"github.com/tetratelabs/singlepass/internal/version"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	root := newRootCmd(stdOut, stdErr)
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	exit(0)
}

func newRootCmd(stdOut, stdErr io.Writer) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "singlepass",
		Short: "singlepass compiles small stack machine programs to arm64 in one pass",
		// Usage is printed by cobra on flag errors only.
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdOut)
	root.SetErr(stdErr)
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML configuration file")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return config.Default(), nil
		}
		return config.Load(configPath)
	}
	root.AddCommand(newCompileCmd(stdOut, stdErr, loadConfig), newTrampolineCmd(stdOut, loadConfig), newVersionCmd(stdOut))
	return root
}

func newCompileCmd(stdOut, stdErr io.Writer, loadConfig func() (*config.Config, error)) *cobra.Command {
	var summary bool
	var outputPath string
	var base uint64
	cmd := &cobra.Command{
		Use:   "compile <program.toml>",
		Short: "Compile and link a program, then print its disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(stdErr, cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			scopes := cfg.Log.LogScopes()

			c, err := compiler.New(cfg.Compiler, logger, scopes)
			if err != nil {
				return err
			}
			mod, err := compiler.LoadModule(args[0])
			if err != nil {
				return err
			}
			cm, err := c.CompileModule(cmd.Context(), mod)
			if err != nil {
				return err
			}
			img, err := compiler.Link(cm, base)
			if err != nil {
				return err
			}
			logging.Scoped(logger, scopes, logging.LogScopeLink).Info("linked module",
				zap.String("program", args[0]),
				zap.Int("size", len(img.Code)),
				zap.Int("symbols", len(img.Symbols)))

			if outputPath != "" {
				if err = os.WriteFile(outputPath, img.Code, 0o644); err != nil {
					return fmt.Errorf("failed to write image: %w", err)
				}
			}
			if summary {
				_, err = fmt.Fprint(stdOut, compiler.Summary(cm, img))
				return err
			}
			for _, s := range img.Symbols {
				header := fmt.Sprintf("%s[%d]", s.Kind, s.Index)
				if s.Name != "" {
					header += " " + s.Name
				}
				if err = printListing(stdOut, header, img.Code[s.Offset:s.Offset+s.Size]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print the layout of the image instead of its disassembly")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the linked image to this file")
	cmd.Flags().Uint64Var(&base, "base", 0, "address the image is linked at")
	return cmd
}

func newTrampolineCmd(stdOut io.Writer, loadConfig func() (*config.Config, error)) *cobra.Command {
	var params, results []string
	var kind string
	cmd := &cobra.Command{
		Use:   "trampoline",
		Short: "Print the disassembly of the trampoline generated for a signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cc, err := cfg.Compiler.ParsedCallingConvention()
			if err != nil {
				return err
			}
			typ := &wasm.FunctionType{}
			if typ.Params, err = parseValueTypes(params); err != nil {
				return err
			}
			if typ.Results, err = parseValueTypes(results); err != nil {
				return err
			}
			if len(typ.Results) > 1 {
				return fmt.Errorf("multiple results are not supported: %v", results)
			}
			cmd.SilenceUsage = true

			// The import variants are generated for a module whose only import has this signature.
			offsets := singlepass.VMContextOffsets{ImportedFunctions: 1}
			var code []byte
			switch kind {
			case "entry":
				code = singlepass.GenStdTrampoline(typ, cc).Body
			case "dynamic_import":
				code = singlepass.GenStdDynamicImportTrampoline(offsets, typ, cc).Body
			case "import_call":
				code = singlepass.GenImportCallTrampoline(offsets, 0, typ, cc).Bytes
			default:
				return fmt.Errorf("invalid trampoline kind: %q", kind)
			}
			return printListing(stdOut, fmt.Sprintf("%s %s", kind, typ), code)
		},
	}
	cmd.Flags().StringSliceVar(&params, "params", nil, "parameter types, e.g. i32,f64")
	cmd.Flags().StringSliceVar(&results, "results", nil, "result types")
	cmd.Flags().StringVar(&kind, "kind", "entry", "one of entry, dynamic_import or import_call")
	return cmd
}

func newVersionCmd(stdOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(stdOut, version.GetSinglepassVersion())
		},
	}
}

func parseValueTypes(names []string) ([]wasm.ValueType, error) {
	var ret []wasm.ValueType
	for _, name := range names {
		t, err := wasm.ParseValueType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}

func printListing(w io.Writer, header string, code []byte) error {
	lines, err := arm64.Disassemble(code)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(w, "%s:\n", header); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err = fmt.Fprintf(w, "  %s\n", l); err != nil {
			return err
		}
	}
	return nil
}
