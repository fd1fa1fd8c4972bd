package wallet

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptPrivateKey reads a hex private key without echo. Empty input means
// read-only mode.
func PromptPrivateKey() (string, error) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = fmt.Fprintln(os.Stderr, "=== NexusLend Account ===")
	_, _ = fmt.Fprintln(os.Stderr, "Paste the private key used to sign pool transactions.")
	_, _ = fmt.Fprintln(os.Stderr, "Leave empty to browse markets read-only.")
	_, _ = fmt.Fprint(os.Stderr, "Private key (hex): ")

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr) // best-effort newline
	if err != nil {
		zeroBytes(raw)
		return "", fmt.Errorf("private key input failed: %w", err)
	}

	key := strings.TrimSpace(string(raw))
	zeroBytes(raw)
	return key, nil
}

// PromptPassphrase reads a passphrase without echo. The caller zeroes it.
func PromptPassphrase(label string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		zeroBytes(raw)
		return nil, fmt.Errorf("passphrase input failed: %w", err)
	}
	return raw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
