// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"
	"modernc.org/cc/v4"

	"github.com/minic-lang/minic/internal/compiler"
	"github.com/minic-lang/minic/internal/ir"
)

var verbose bool

var command = &cobra.Command{
	Use:  "minic source.c [-o output.o]",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.PersistentFlags().GetString("output")
		emit, _ := cmd.PersistentFlags().GetString("emit")
		verifyReference, _ := cmd.PersistentFlags().GetBool("verify-reference")

		source, err := os.ReadFile(args[0])
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if verifyReference {
			verboseLog("running reference parse via modernc.org/cc/v4 before the hand-written pipeline")
			if err := verifyWithReferenceFrontend(args[0]); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "reference parse disagrees: %v\n", err)
			}
		}

		res, err := compiler.Compile(source)
		if err != nil {
			var semErr *compiler.SemanticErrors
			if errors.As(err, &semErr) {
				for _, d := range semErr.Diagnostics {
					_, _ = fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", args[0], d.Line, d.Column, d.Message)
				}
				os.Exit(1)
			}
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		switch emit {
		case "", "object":
			if output == "" {
				output = "a.o"
			}
			if err := os.WriteFile(output, res.Object, 0o644); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			verboseLog(fmt.Sprintf("wrote %d bytes to %s", len(res.Object), output))
		case "tokens":
			for _, tok := range res.Tokens {
				fmt.Printf("%-4d:%-4d %-14s %q\n", tok.Line, tok.Column, tok.Kind, tok.Lexeme)
			}
		case "ast":
			fmt.Printf("%+v\n", res.AST)
		case "ir":
			fmt.Print(ir.Print(res.IR))
		case "asm":
			fmt.Print(res.Assembly)
		default:
			_, _ = fmt.Fprintf(os.Stderr, "unknown --emit value %q (want tokens|ast|ir|asm|object)\n", emit)
			os.Exit(1)
		}
	},
}

var infoCommand = &cobra.Command{
	Use:   "info",
	Short: "print host ISA features relevant to the x86-64 backend",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("minic targets x86-64 unconditionally; host features below are informational only.")
		fmt.Printf("SSE2:   %v\n", cpu.X86.HasSSE2)
		fmt.Printf("SSE4.1: %v\n", cpu.X86.HasSSE41)
		fmt.Printf("AVX:    %v\n", cpu.X86.HasAVX)
		fmt.Printf("AVX2:   %v\n", cpu.X86.HasAVX2)
	},
}

func verboseLog(msg string) {
	if verbose {
		_, _ = fmt.Fprintln(os.Stderr, msg)
	}
}

// verifyWithReferenceFrontend is a sanity check only: it parses the
// same source with a real, complete C frontend and reports whether it
// was accepted. It never feeds its result back into the hand-written
// pipeline — minic's own lexer/parser/analyzer above are what actually
// produce the object file.
func verifyWithReferenceFrontend(path string) error {
	cfg, err := cc.NewConfig("linux", "amd64")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: path, Value: f},
	})
	return err
}

func init() {
	command.PersistentFlags().StringP("output", "o", "", "output object file path (default a.o)")
	command.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "if set, log pipeline progress to stderr")
	command.PersistentFlags().String("emit", "", "emit an intermediate form instead of an object file: tokens|ast|ir|asm")
	command.PersistentFlags().Bool("verify-reference", false, "additionally parse the source with modernc.org/cc/v4 and report disagreement (does not affect the emitted object)")
	command.AddCommand(infoCommand)
}

func main() {
	if err := command.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
