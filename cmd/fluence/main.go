package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/embed"
	"github.com/fluence-lang/fluence/version"
)

func newEngine() *embed.Engine {
	return embed.NewEngine(func() embed.Frontend { return asmFrontend{} })
}

func main() {
	app := &cli.Command{
		Name:  "fluence",
		Usage: "run and inspect Fluence bytecode-assembly programs",
		Commands: []*cli.Command{
			runCommand,
			replCommand,
			dumpCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "print the version and exit",
				Action: func(ctx context.Context, cmd *cli.Command, ok bool) error {
					if ok {
						fmt.Println(version.Version())
					}
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInteractiveShell()
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fluence:", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "assemble and execute a bytecode-assembly file",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("run: missing <file> argument")
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		e := newEngine()
		e.AddAllowedIntrinsicLibraries(e.Intrinsics().Names()...)
		e.SetOutputSink(func(s string) { fmt.Print(s) })
		e.SetErrorOutputSink(func(s string) { fmt.Fprintln(os.Stderr, s) })

		if err := e.Compile(source, path); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if err := e.RunUntilDone(); err != nil {
			e.ReportError(err)
			os.Exit(1)
		}
		return nil
	},
}

var dumpCommand = &cli.Command{
	Name:      "dump",
	Usage:     "assemble a file and print its bytecode listing",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("dump: missing <file> argument")
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		result, err := (asmFrontend{}).Compile(source, 0)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		return bytecode.Dump(os.Stdout, result.Chunk)
	},
}

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "start an interactive bytecode-assembly session",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runInteractiveShell()
	},
}

// runInteractiveShell reads one complete .func/.endfunc block or bare
// instruction line at a time and assembles-then-runs it as its own
// standalone program. Engine.Compile always installs a fresh Machine, so
// there's no way to extend a previously run program's globals in place
// without re-executing everything compiled before it (replaying every
// side effect already printed); each REPL entry is deliberately its own
// independent program instead, the same way `fluence run` treats a file.
func runInteractiveShell() error {
	rl, err := readline.New("fluence> ")
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	var buffer strings.Builder
	depth := 0

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("repl: %w", err)
		}

		trimmed := strings.TrimSpace(line)
		if depth == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}

		buffer.WriteString(line)
		buffer.WriteByte('\n')
		if strings.HasPrefix(trimmed, ".func ") {
			depth++
		}
		if trimmed == ".endfunc" {
			depth--
		}
		if depth > 0 {
			rl.SetPrompt("...     ")
			continue
		}
		rl.SetPrompt("fluence> ")

		source := buffer.String()
		buffer.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		e := newEngine()
		e.AddAllowedIntrinsicLibraries(e.Intrinsics().Names()...)
		e.SetOutputSink(func(s string) { fmt.Print(s) })
		e.SetErrorOutputSink(func(s string) { fmt.Fprintln(os.Stderr, s) })

		if err := e.Compile([]byte(source), "<repl>"); err != nil {
			fmt.Fprintln(os.Stderr, "assemble error:", err)
			continue
		}
		if err := e.RunUntilDone(); err != nil {
			e.ReportError(err)
		}
	}
}
