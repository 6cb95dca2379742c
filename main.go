package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"

	"stackcc/pkg/config"
)

// driver carries the state shared by every command.
type driver struct {
	cfg    config.Config
	log    *log.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newDriver() *driver {
	return &driver{
		cfg:    config.Default(),
		log:    log.New(os.Stderr, "stackcc: ", 0),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func newApp(d *driver) *cli.App {
	return &cli.App{
		Name:      "stackcc",
		Usage:     "compile small C-like programs to stack machine bytecode",
		Writer:    d.stdout,
		ErrWriter: d.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "project file",
				Value: config.FileName,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log every stage and print stack traces on failure",
			},
		},
		Before: d.loadConfig,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "compile a source file to bytecode",
				ArgsUsage: "file.c",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "bytecode path"},
					&cli.StringFlag{Name: "asm", Usage: "also write the generated assembly to this path"},
				},
				Action: d.build,
			},
			{
				Name:      "asm",
				Usage:     "assemble an assembly file to bytecode",
				ArgsUsage: "file.asm",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "bytecode path"},
				},
				Action: d.assemble,
			},
			{
				Name:      "run",
				Usage:     "execute a source or bytecode file",
				ArgsUsage: "file.c|file.bin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stdin", Usage: "read program input from this file"},
					&cli.IntFlag{Name: "max-steps", Usage: "stop after this many instructions"},
				},
				Action: d.run,
			},
			{
				Name:      "disasm",
				Usage:     "print the instructions of a bytecode file",
				ArgsUsage: "file.bin",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "repr", Usage: "dump the decoded program as Go values"},
				},
				Action: d.disasm,
			},
			{
				Name:      "check",
				Usage:     "run the cases of one or more markdown case books",
				ArgsUsage: "book.md...",
				Action:    d.check,
			},
			{
				Name:   "init",
				Usage:  "write a default project file",
				Action: d.initConfig,
			},
		},
	}
}

func (d *driver) loadConfig(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	d.cfg = cfg
	return nil
}

// report prints err the way the configuration asks for.
func (d *driver) report(err error) {
	if d.cfg.Verbose {
		tracerr.PrintSourceColor(err)
		return
	}
	fmt.Fprintf(d.stderr, "stackcc: %v\n", tracerr.Unwrap(err))
}

func (d *driver) debugf(format string, args ...any) {
	if d.cfg.Verbose {
		d.log.Printf(format, args...)
	}
}

func main() {
	d := newDriver()
	if err := newApp(d).Run(os.Args); err != nil {
		d.report(err)
		os.Exit(1)
	}
}
