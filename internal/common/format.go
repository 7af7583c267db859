package common

import (
	"fmt"
	"strings"
)

// DefaultWidth is the console separator width used by the CLIs.
const DefaultWidth = 80

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}
