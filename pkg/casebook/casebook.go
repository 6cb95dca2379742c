// Package casebook reads compiler test cases from Markdown files.
//
// A case starts at a heading "Test: <name>" and is made of fenced code
// blocks tagged by language:
//
//	c       the program (required, exactly one)
//	input   text fed to the program's input()
//	output  the exact text the program must print
//	asm     instructions that must appear, in order and adjacent, in the
//	        generated assembly
//	error   a substring of the expected compile error
//
// A case needs at least one of output, asm or error.
package casebook

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type FenceType string

const (
	FenceSource FenceType = "c"
	FenceInput  FenceType = "input"
	FenceOutput FenceType = "output"
	FenceAsm    FenceType = "asm"
	FenceError  FenceType = "error"
)

// Case is one test extracted from a book.
type Case struct {
	Name   string
	Line   int // line of the heading in the book
	Source string
	Input  string
	Output *string // nil when the case does not check output
	Asm    string
	Error  string
}

// Parse extracts every case from a Markdown document.
func Parse(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var (
		cases   []Case
		current *Case
	)
	finish := func() error {
		if current == nil {
			return nil
		}
		if err := current.validate(); err != nil {
			return err
		}
		cases = append(cases, *current)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &Case{Name: strings.TrimPrefix(heading, "Test: "), Line: lineOf(n, markdown)}

		case *ast.FencedCodeBlock:
			lang := FenceType(n.Language(markdown))
			line := lineOf(n, markdown)
			if current == nil {
				if lang != "" {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence outside of a test case", line, lang)
				}
				return ast.WalkContinue, nil
			}
			if err := current.add(lang, blockText(n, markdown), line); err != nil {
				return ast.WalkStop, err
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return cases, nil
}

// ReadFile parses the book stored at path.
func ReadFile(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cases, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

func (c *Case) add(lang FenceType, content string, line int) error {
	dup := func() error {
		return fmt.Errorf("line %d: more than one %s fence in test %q", line, lang, c.Name)
	}
	switch lang {
	case FenceSource:
		if c.Source != "" {
			return dup()
		}
		c.Source = content
	case FenceInput:
		if c.Input != "" {
			return dup()
		}
		c.Input = content
	case FenceOutput:
		if c.Output != nil {
			return dup()
		}
		c.Output = &content
	case FenceAsm:
		if c.Asm != "" {
			return dup()
		}
		c.Asm = content
	case FenceError:
		if c.Error != "" {
			return dup()
		}
		c.Error = strings.TrimSpace(content)
	case "":
		// Plain blocks are commentary.
	default:
		return fmt.Errorf("line %d: unknown fence language %q in test %q", line, lang, c.Name)
	}
	return nil
}

func (c *Case) validate() error {
	if strings.TrimSpace(c.Source) == "" && c.Error == "" {
		return fmt.Errorf("test %q has no c fence", c.Name)
	}
	if c.Output == nil && c.Asm == "" && c.Error == "" {
		return fmt.Errorf("test %q has nothing to check", c.Name)
	}
	if c.Error != "" && c.Output != nil {
		return fmt.Errorf("test %q expects both an error and output", c.Name)
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line where node's content starts.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 0
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:start], []byte("\n")) + 1
}
