package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/TheMichaelB/echoseal/internal/seal"
)

// PasswordEnv supplies a password when no flag is given.
const PasswordEnv = "ECHOSEAL_PASSWORD"

var errNoPassword = errors.New("password required: use --password, " + PasswordEnv + " or a terminal")

// resolvePassword returns the flag value, then the environment, then an
// interactive prompt when allowed and stdin is a terminal.
func resolvePassword(flagValue string, prompt bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}
	if !prompt {
		return "", nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNoPassword
	}
	return promptPassword("Seal password: ")
}

// lazyPassword asks only when a protected seal is found, and at most once.
func lazyPassword(flagValue string) seal.PasswordProvider {
	var (
		asked    bool
		password string
		err      error
	)
	return seal.PasswordFunc(func(context.Context) (string, error) {
		if !asked {
			password, err = resolvePassword(flagValue, true)
			asked = true
		}
		return password, err
	})
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(password), nil
}
