package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/benaskins/securestore/internal/dispatch"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	styleKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleMuted  = lipgloss.NewStyle().Faint(true)
)

// resultErr turns a failed Result into an error carrying its message.
func resultErr(res dispatch.Result) error {
	if res.OK() {
		return nil
	}
	return errors.New(res.Message)
}

func printKeys(w io.Writer, service string, keys []string) {
	if len(keys) == 0 {
		fmt.Fprintln(w, styleMuted.Render("No secrets stored for "+service))
		return
	}
	fmt.Fprintln(w, styleHeader.Render(service))
	for _, k := range keys {
		fmt.Fprintln(w, "  "+styleKey.Render(k))
	}
}
