package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when the confirmation prompt differs from the
// first entry.
var ErrMismatch = errors.New("passphrases do not match")

// Prompter reads one secret after showing prompt. ok is false when no
// interactive input is available.
type Prompter func(prompt string) (value string, ok bool, err error)

// Source resolves a keystore passphrase from an environment variable or by
// prompting. The first result, success or failure, is cached.
type Source struct {
	envVar  string
	label   string
	confirm bool
	prompt  Prompter

	once  sync.Once
	value string
	err   error
}

// Option configures a Source.
type Option func(*Source)

// WithConfirmation asks twice on interactive input. Used when a keystore is
// being created.
func WithConfirmation() Option {
	return func(s *Source) { s.confirm = true }
}

// WithPrompter replaces the terminal prompt.
func WithPrompter(p Prompter) Option {
	return func(s *Source) {
		if p != nil {
			s.prompt = p
		}
	}
}

// NewSource checks envVar before prompting. label names the keystore in
// prompts and errors.
func NewSource(envVar, label string, opts ...Option) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "vault keystore"
	}
	s := &Source{envVar: strings.TrimSpace(envVar), label: label, prompt: terminalPrompt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func terminalPrompt(prompt string) (string, bool, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", false, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", true, fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), true, nil
}

// Get returns the passphrase. Environment values are used verbatim and are
// never confirmed; whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	first, ok, err := s.prompt(fmt.Sprintf("Enter %s passphrase: ", s.label))
	if err != nil {
		return "", err
	}
	if !ok {
		if s.envVar != "" {
			return "", fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
		}
		return "", fmt.Errorf("%s passphrase required and no terminal available", s.label)
	}
	if strings.TrimSpace(first) == "" {
		return "", fmt.Errorf("%s passphrase cannot be empty", s.label)
	}
	if !s.confirm {
		return first, nil
	}
	second, _, err := s.prompt(fmt.Sprintf("Repeat %s passphrase: ", s.label))
	if err != nil {
		return "", err
	}
	if second != first {
		return "", ErrMismatch
	}
	return first, nil
}
