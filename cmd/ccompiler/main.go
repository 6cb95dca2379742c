// Command ccompiler dumps every stage of the pipeline for one program.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/repr"
	"github.com/ztrue/tracerr"

	"stackcc/pkg/compiler"
)

const testSource = `int x = 10;
int y = 20;
int add(int a, int b) { return a + b; }
print(add(x, y));
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	res, err := compiler.Compile(src)

	if res.Tokens != nil {
		fmt.Printf("Tokens (%d)\n", len(res.Tokens))
		for _, tok := range res.Tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
	}

	if res.AST != nil {
		fmt.Printf("AST (%d nodes)\n", res.AST.Len())
		fmt.Print(res.AST)
		fmt.Println()
	}

	if res.Symbols != "" {
		fmt.Println("Symbols")
		fmt.Print(res.Symbols)
		fmt.Println()
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	if err != nil {
		tracerr.PrintSourceColor(err)
		os.Exit(1)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(res.Assembly)
	fmt.Println()

	fmt.Println("Program")
	fmt.Println(repr.String(res.Program, repr.Indent("  ")))
}
