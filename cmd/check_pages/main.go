// Command check_pages compares an original PDF with its edited export. It
// checks that no page was lost and that the original text of every page is
// still present, then lists text that appears only in the edited file.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <edited.pdf>
package main

import (
	"fmt"
	"os"

	"pdf-editor/internal/inspect"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <edited.pdf>")
		fmt.Println()
		fmt.Println("This tool validates an edited export against its original.")
		fmt.Println("It compares:")
		fmt.Println("  - Page counts (must be equal)")
		fmt.Println("  - Original text runs (each must still be present on its page)")
		fmt.Println("  - Added text runs (listed with their position)")
		os.Exit(1)
	}

	originalPath := os.Args[1]
	editedPath := os.Args[2]

	original, err := inspect.OpenFile(originalPath)
	if err != nil {
		fmt.Printf("Error: cannot read original PDF %s: %v\n", originalPath, err)
		os.Exit(1)
	}
	edited, err := inspect.OpenFile(editedPath)
	if err != nil {
		fmt.Printf("Error: cannot read edited PDF %s: %v\n", editedPath, err)
		os.Exit(1)
	}

	fmt.Printf("Comparing pages...\n")
	fmt.Printf("  Original: %s (%d pages)\n", originalPath, original.PageCount())
	fmt.Printf("  Edited:   %s (%d pages)\n\n", editedPath, edited.PageCount())

	res := compare(original, edited)
	fmt.Print(res.format())

	if !res.complete() {
		os.Exit(2)
	}
}
