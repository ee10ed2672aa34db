package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// MinLength matches the shortest HMAC secret farmd accepts.
const MinLength = 32

// Source lazily resolves the admin token signing secret from an environment
// variable or by prompting the operator. The value is cached after the first
// successful retrieval.
type Source struct {
	envVar string
	input  *os.File
	prompt io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a secret source that checks envVar before prompting on
// the terminal.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), input: os.Stdin, prompt: os.Stderr}
}

// Get returns the cached secret or resolves it on first use.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				s.value, s.err = check(value)
				if s.err != nil {
					s.err = fmt.Errorf("%s: %w", s.envVar, s.err)
				}
				return
			}
		}

		fd := int(s.input.Fd())
		if !term.IsTerminal(fd) {
			if s.envVar != "" {
				s.err = fmt.Errorf("signing secret required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("signing secret required and no terminal available")
			}
			return
		}

		fmt.Fprint(s.prompt, "Enter farmd HMAC secret: ")
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(s.prompt)
		if err != nil {
			s.err = fmt.Errorf("failed to read secret: %w", err)
			return
		}
		s.value, s.err = check(string(bytes))
	})

	return s.value, s.err
}

func check(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("secret cannot be empty")
	}
	if len(value) < MinLength {
		return "", fmt.Errorf("secret must be at least %d characters", MinLength)
	}
	return value, nil
}
