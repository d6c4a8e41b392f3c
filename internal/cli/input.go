package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoInput = errors.New("no input: pass it as an argument or pipe it on stdin")

// commandInput returns the text a command works on: its arguments joined, or
// stdin when nothing was passed and stdin is not a terminal.
func commandInput(cmd *cobra.Command, args []string) (string, error) {
	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return readInput(args, in, interactive)
}

func readInput(args []string, r io.Reader, interactive bool) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if interactive {
		return "", errNoInput
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return "", errNoInput
	}
	return text, nil
}
