// Command candc is the Candi compiler front end CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ayzg/cand-lang-legacy/pkg/evaluator"
	"github.com/ayzg/cand-lang-legacy/pkg/formatter"
	"github.com/ayzg/cand-lang-legacy/pkg/lexer"
	"github.com/ayzg/cand-lang-legacy/pkg/parser"
	"github.com/ayzg/cand-lang-legacy/pkg/preprocessor"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: candc <command> [options] <file.candi>")
		fmt.Fprintln(os.Stderr, "commands: tokens, ast, run")
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "tokens":
		os.Exit(cmdTokens(os.Args[2:]))
	case "ast":
		os.Exit(cmdAst(os.Args[2:]))
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "help", "--help", "-h":
		fmt.Println("usage: candc <command> [options] <file.candi>")
		fmt.Println("commands:")
		fmt.Println("  tokens  print the preprocessed token stream")
		fmt.Println("  ast     print the parsed AST as an indented tree")
		fmt.Println("  run     constant-evaluate the program")
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

func parseArgs(args []string) (file string, noPreproc bool) {
	for _, a := range args {
		switch a {
		case "--no-preprocess":
			noPreproc = true
		default:
			if !strings.HasPrefix(a, "-") {
				file = a
			}
		}
	}
	return file, noPreproc
}

func loadTokens(file string, noPreproc bool) ([]lexer.Token, int) {
	source, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", file, err)
		return nil, 1
	}
	toks, err := lexer.Tokenize(string(source))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 2
	}
	if !noPreproc {
		toks, err = preprocessor.Preprocess(toks, file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return nil, 2
		}
	}
	return toks, 0
}

func cmdTokens(args []string) int {
	file, noPreproc := parseArgs(args)
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: candc tokens <file.candi> [--no-preprocess]")
		return 1
	}
	toks, code := loadTokens(file, noPreproc)
	if code != 0 {
		return code
	}
	fmt.Print(formatter.FormatTokens(toks))
	return 0
}

func cmdAst(args []string) int {
	file, noPreproc := parseArgs(args)
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: candc ast <file.candi> [--no-preprocess]")
		return 1
	}
	toks, code := loadTokens(file, noPreproc)
	if code != 0 {
		return code
	}
	program, err := parser.ParseProgram(toks)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fmt.Print(formatter.FormatTree(program))
	return 0
}

func cmdRun(args []string) int {
	file, noPreproc := parseArgs(args)
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: candc run <file.candi> [--no-preprocess]")
		return 1
	}
	toks, code := loadTokens(file, noPreproc)
	if code != 0 {
		return code
	}
	program, err := parser.ParseProgram(toks)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	ev := evaluator.New()
	val, _, err := ev.Execute(program)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 3
	}
	if val != nil {
		fmt.Println(val.Display())
	}
	return 0
}
