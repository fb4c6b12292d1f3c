package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/securestore/internal/dispatch"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets",
}

var (
	requirePresence bool
	reuseSeconds    int
)

var secretSetCmd = &cobra.Command{
	Use:   "set <service> <key> [value]",
	Short: "Store a secret",
	Long:  "Store a secret. If value is omitted, reads from stdin (useful for piping).",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, key := args[0], args[1]

		var value string
		if len(args) == 3 {
			value = args[2]
		} else {
			v, err := readValue()
			if err != nil {
				return err
			}
			value = v
		}

		return withCaller(func(c caller) error {
			res := c.Dispatch(setCall(service, key, value))
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Printf("Secret %q stored in %q\n", res.Message, service)
			return nil
		})
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <service> <key>",
	Short: "Retrieve a secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCaller(func(c caller) error {
			res := c.Dispatch(dispatch.Call{Action: dispatch.ActionGet, Arguments: []any{args[0], args[1]}})
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		})
	},
}

var secretListCmd = &cobra.Command{
	Use:     "list <service>",
	Short:   "List the keys stored for a service",
	Aliases: []string{"ls"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCaller(func(c caller) error {
			res := c.Dispatch(dispatch.Call{Action: dispatch.ActionKeys, Arguments: []any{args[0]}})
			if err := resultErr(res); err != nil {
				return err
			}
			printKeys(os.Stdout, args[0], res.Keys)
			return nil
		})
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:     "delete <service> <key>",
	Short:   "Remove a secret",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCaller(func(c caller) error {
			res := c.Dispatch(dispatch.Call{Action: dispatch.ActionRemove, Arguments: []any{args[0], args[1]}})
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Printf("Secret %q deleted\n", res.Message)
			return nil
		})
	},
}

var secretClearCmd = &cobra.Command{
	Use:   "clear <service>",
	Short: "Remove every secret stored for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCaller(func(c caller) error {
			res := c.Dispatch(dispatch.Call{Action: dispatch.ActionClear, Arguments: []any{args[0]}})
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		})
	},
}

// setCall builds a set call, attaching an access config only when the
// user asked for presence.
func setCall(service, key, value string) dispatch.Call {
	args := []any{service, key, value}
	if requirePresence {
		args = append(args, map[string]any{
			"requiresUserPresence":                 true,
			"allowableAuthenticationReuseDuration": reuseSeconds,
		})
	}
	return dispatch.Call{Action: dispatch.ActionSet, Arguments: args}
}

func readValue() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Enter secret value: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Println()
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func init() {
	for _, c := range []*cobra.Command{secretSetCmd, secretRotateCmd} {
		c.Flags().BoolVar(&requirePresence, "presence", false, "require a passcode before the secret can be read")
		c.Flags().IntVar(&reuseSeconds, "reuse", 0, "seconds a successful passcode check stays valid (max 300)")
	}

	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretListCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	secretCmd.AddCommand(secretClearCmd)
	secretCmd.AddCommand(secretRotateCmd)
	rootCmd.AddCommand(secretCmd)
}
