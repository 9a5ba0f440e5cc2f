// Command clientimport validates client spreadsheets, imports them into
// PostgreSQL and exports blank import templates.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", userError(err)))
		os.Exit(1)
	}
}
