package utils

import (
	"fmt"
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

var colourOutput = terminal.IsTerminal(int(os.Stdout.Fd()))

func InRed(str string) string {
	if !colourOutput {
		return str
	}
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func InGreen(str string) string {
	if !colourOutput {
		return str
	}
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}
