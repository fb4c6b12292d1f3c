package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/securestore/internal/presence"
)

var passcodeCmd = &cobra.Command{
	Use:   "passcode",
	Short: "Manage the passcode that guards protected secrets",
}

var passcodeSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set or replace the passcode",
	Long: "Prompts for a new passcode and stores its bcrypt hash in the config file. " +
		"A running daemon picks up the change automatically.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := promptPasscode("New passcode: ")
		if err != nil {
			return err
		}
		defer first.Destroy()
		second, err := promptPasscode("Repeat passcode: ")
		if err != nil {
			return err
		}
		defer second.Destroy()

		if !bytes.Equal(first.Bytes(), second.Bytes()) {
			return errors.New("passcodes do not match")
		}

		hash, err := presence.HashPasscode(first.Bytes())
		if err != nil {
			return err
		}
		cfg.Presence.PasscodeHash = hash

		path := configFile()
		if err := ensureParent(path); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
		if err := saveConfig(path); err != nil {
			return err
		}
		fmt.Println("Passcode updated")
		return nil
	},
}

var passcodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a passcode is enrolled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Presence.PasscodeHash == "" {
			fmt.Println(styleMuted.Render("No passcode enrolled; protected secrets cannot be created"))
			return nil
		}
		fmt.Printf("Passcode enrolled, %d attempts per minute\n", cfg.Attempts())
		return nil
	},
}

// promptPasscode reads a passcode into a locked buffer.
func promptPasscode(prompt string) (*memguard.LockedBuffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("passcode must be entered on a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passcode: %w", err)
	}
	buf := memguard.NewBufferFromBytes(b)
	if buf.Size() == 0 {
		buf.Destroy()
		return nil, errors.New("passcode must not be empty")
	}
	return buf, nil
}

func init() {
	passcodeCmd.AddCommand(passcodeSetCmd)
	passcodeCmd.AddCommand(passcodeStatusCmd)
	rootCmd.AddCommand(passcodeCmd)
}
