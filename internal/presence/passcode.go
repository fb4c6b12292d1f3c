package presence

import (
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// PromptFunc asks the user for their passcode.
type PromptFunc func(reason string) ([]byte, error)

// PasscodeAuthenticator checks a typed passcode against a bcrypt hash.
type PasscodeAuthenticator struct {
	hash   []byte
	prompt PromptFunc
}

// NewPasscodeAuthenticator returns an authenticator for hash. An empty hash
// means the device has no passcode enrolled.
func NewPasscodeAuthenticator(hash string, prompt PromptFunc) *PasscodeAuthenticator {
	if prompt == nil {
		prompt = TerminalPrompt
	}
	return &PasscodeAuthenticator{hash: []byte(hash), prompt: prompt}
}

func (a *PasscodeAuthenticator) Enrolled() error {
	if len(a.hash) == 0 {
		return ErrNotEnrolled
	}
	return nil
}

func (a *PasscodeAuthenticator) Authenticate(reason string) error {
	if err := a.Enrolled(); err != nil {
		return err
	}

	raw, err := a.prompt(reason)
	if err != nil {
		return err
	}
	// The locked buffer wipes raw on creation and itself on Destroy.
	buf := memguard.NewBufferFromBytes(raw)
	defer buf.Destroy()

	if buf.Size() == 0 {
		return ErrUserCanceled
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, buf.Bytes()); err != nil {
		return ErrAuthFailed
	}
	return nil
}

// HashPasscode returns the bcrypt hash to store in configuration.
func HashPasscode(passcode []byte) (string, error) {
	if len(passcode) == 0 {
		return "", errors.New("passcode must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword(passcode, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing passcode: %w", err)
	}
	return string(hash), nil
}

// TerminalPrompt reads a passcode from the controlling terminal without
// echo. It fails with ErrInteractionNotAllowed when stdin is not a terminal.
func TerminalPrompt(reason string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrInteractionNotAllowed
	}
	fmt.Fprintf(os.Stderr, "%s\nPasscode: ", reason)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passcode: %w", err)
	}
	return b, nil
}
