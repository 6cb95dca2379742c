package casebook

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ztrue/tracerr"

	"stackcc/pkg/compiler"
	"stackcc/pkg/vm"
)

// ErrMismatch marks a case whose program compiled and ran but did not do
// what the book says.
var ErrMismatch = errors.New("case mismatch")

// Options tunes the machine a case runs on.
type Options struct {
	Memory   int
	MaxSteps int
}

// Run compiles and, when the case checks output, executes c.
func Run(c Case, opts Options) error {
	res, err := compiler.Compile(c.Source)
	if c.Error != "" {
		if err == nil {
			return fmt.Errorf("%w: expected error containing %q, compiled fine", ErrMismatch, c.Error)
		}
		if msg := tracerr.Unwrap(err).Error(); !strings.Contains(msg, c.Error) {
			return fmt.Errorf("%w: expected error containing %q, got %q", ErrMismatch, c.Error, msg)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if c.Asm != "" {
		if err := matchAsm(res.Assembly, c.Asm); err != nil {
			return err
		}
	}

	if c.Output == nil {
		return nil
	}
	var out bytes.Buffer
	m := vm.New(res.Program.Code, res.Program.StartIP, vm.Options{
		Memory:   opts.Memory,
		MaxSteps: opts.MaxSteps,
		Stdin:    strings.NewReader(c.Input),
		Stdout:   &out,
	})
	if err := m.Run(); err != nil {
		return err
	}
	if got := out.String(); got != *c.Output {
		return fmt.Errorf("%w: output\n  got:  %q\n  want: %q", ErrMismatch, got, *c.Output)
	}
	return nil
}

// matchAsm reports whether the instructions of want appear as one
// adjacent run inside got. Comments and indentation are ignored.
func matchAsm(got, want string) error {
	g, w := instructions(got), instructions(want)
	if len(w) == 0 {
		return nil
	}
	for i := 0; i+len(w) <= len(g); i++ {
		match := true
		for j := range w {
			if g[i+j] != w[j] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return fmt.Errorf("%w: assembly does not contain\n%s", ErrMismatch, strings.Join(w, "\n"))
}

func instructions(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if i := strings.IndexByte(l, ';'); i >= 0 {
			l = l[:i]
		}
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return out
}
