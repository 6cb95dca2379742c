package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"

	"stackcc/pkg/asm"
	"stackcc/pkg/casebook"
	"stackcc/pkg/compiler"
	"stackcc/pkg/config"
	"stackcc/pkg/utils"
	"stackcc/pkg/vm"
)

var errCasesFailed = errors.New("case book failures")

func inputPath(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one input file, got %d", c.Command.Name, c.NArg())
	}
	return c.Args().First(), nil
}

// compileFile compiles path and logs the warnings of the symbol table.
func (d *driver) compileFile(path string) (*compiler.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	res, err := compiler.Compile(string(src))
	for _, w := range res.Warnings {
		d.log.Printf("%s: warning: %s", path, w)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	d.debugf("%s: %d tokens, %d nodes, %d instructions, %d slots",
		path, len(res.Tokens), res.AST.Len(), res.Program.Instructions, len(res.Program.Code))
	return res, nil
}

func (d *driver) build(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	res, err := d.compileFile(in)
	if err != nil {
		return err
	}

	out := c.String("output")
	if out == "" {
		out = d.cfg.Output
	}
	if out == "" {
		out = utils.DefaultOutputPath(in, ".bin")
	}
	if err := asm.WriteFile(out, res.Program); err != nil {
		return err
	}
	d.debugf("wrote %s", out)

	asmOut := c.String("asm")
	if asmOut == "" && d.cfg.EmitAsm {
		asmOut = utils.DefaultOutputPath(out, ".asm")
	}
	if asmOut != "" {
		if err := os.WriteFile(asmOut, []byte(res.Assembly), 0o644); err != nil {
			return tracerr.Wrap(err)
		}
		d.debugf("wrote %s", asmOut)
	}
	return nil
}

func (d *driver) assemble(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(in)
	if err != nil {
		return tracerr.Wrap(err)
	}
	prog, err := asm.Assemble(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	out := c.String("output")
	if out == "" {
		out = utils.DefaultOutputPath(in, ".bin")
	}
	if err := asm.WriteFile(out, prog); err != nil {
		return err
	}
	d.debugf("%s: %d instructions -> %s", in, prog.Instructions, out)
	return nil
}

func (d *driver) load(path string) (*asm.Program, error) {
	if utils.IsSource(path) {
		res, err := d.compileFile(path)
		if err != nil {
			return nil, err
		}
		return res.Program, nil
	}
	return asm.ReadFile(path)
}

func (d *driver) run(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	prog, err := d.load(in)
	if err != nil {
		return err
	}

	stdin := d.stdin
	if path := c.String("stdin"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return tracerr.Wrap(err)
		}
		defer f.Close()
		stdin = f
	}

	maxSteps := d.cfg.MaxSteps
	if c.IsSet("max-steps") {
		maxSteps = c.Int("max-steps")
	}

	m := vm.New(prog.Code, prog.StartIP, vm.Options{
		Memory:   d.cfg.Memory,
		MaxSteps: maxSteps,
		Stdin:    stdin,
		Stdout:   d.stdout,
	})
	if err := m.Run(); err != nil {
		return tracerr.Wrap(err)
	}
	d.debugf("%s: halted after %d steps", in, m.Steps)
	return nil
}

func (d *driver) disasm(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	prog, err := asm.ReadFile(in)
	if err != nil {
		return err
	}

	if c.Bool("repr") {
		lines, err := prog.Disassemble()
		if err != nil {
			return tracerr.Wrap(err)
		}
		fmt.Fprintln(d.stdout, repr.String(lines, repr.Indent("  ")))
		return nil
	}

	listing, err := prog.Listing()
	io.WriteString(d.stdout, listing)
	return tracerr.Wrap(err)
}

func (d *driver) check(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("check: no case books given")
	}
	opts := casebook.Options{Memory: d.cfg.Memory, MaxSteps: d.cfg.MaxSteps}

	total, failed := 0, 0
	for _, book := range c.Args().Slice() {
		cases, err := casebook.ReadFile(book)
		if err != nil {
			return err
		}
		for _, tc := range cases {
			total++
			if err := casebook.Run(tc, opts); err != nil {
				failed++
				msg := strings.ReplaceAll(tracerr.Unwrap(err).Error(), "\n", "\n    ")
				fmt.Fprintf(d.stdout, "FAIL %s:%d %s\n    %s\n", book, tc.Line, tc.Name, msg)
				continue
			}
			if d.cfg.Verbose {
				fmt.Fprintf(d.stdout, "PASS %s:%d %s\n", book, tc.Line, tc.Name)
			}
		}
	}

	fmt.Fprintf(d.stdout, "%d passed, %d failed\n", total-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCasesFailed, failed, total)
	}
	return nil
}

func (d *driver) initConfig(c *cli.Context) error {
	path, dir, err := utils.GetPathInfo(c.String("config"))
	if err != nil {
		return tracerr.Wrap(err)
	}
	if err := config.Write(path, config.Default()); err != nil {
		return err
	}
	d.log.Printf("wrote %s; run stackcc from %s to use it", path, dir)
	return nil
}
