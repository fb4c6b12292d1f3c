package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	rotateCommand string
	rotateTimeout time.Duration
)

var secretRotateCmd = &cobra.Command{
	Use:   "rotate <service> <key> --command <cmd>",
	Short: "Replace a secret with the output of a command",
	Long: "Runs the command with /bin/sh and stores its stdout as the new value. " +
		"The command must print the new secret and nothing else.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rotateCommand == "" {
			return errors.New("--command is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), rotateTimeout)
		defer cancel()

		value, err := runRotationCommand(ctx, rotateCommand)
		if err != nil {
			return fmt.Errorf("rotation command failed: %w", err)
		}
		if value == "" {
			return errors.New("rotation command produced no output")
		}

		return withCaller(func(c caller) error {
			res := c.Dispatch(setCall(args[0], args[1], value))
			if err := resultErr(res); err != nil {
				return err
			}
			fmt.Printf("Secret %q rotated\n", res.Message)
			return nil
		})
	},
}

// runRotationCommand executes a rotation script and captures its stdout.
// The script must output the new secret value to stdout (and only the value).
func runRotationCommand(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimRight(string(output), "\n"), nil
}

func init() {
	secretRotateCmd.Flags().StringVar(&rotateCommand, "command", "", "command whose stdout is the new secret")
	secretRotateCmd.Flags().DurationVar(&rotateTimeout, "timeout", time.Minute, "how long the command may run")
}
