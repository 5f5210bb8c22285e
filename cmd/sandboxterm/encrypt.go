package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"sandbox-term/internal/infra/config"
)

func runEncryptToken(args []string) error {
	var f cliFlags
	fs := newFlagSet("encrypt-token", &f)
	token := fs.String("token", "", "token to encrypt (default: first line of stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out, err := encryptToken(*token, os.Stdin, os.Getenv(config.KeyEnv))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// encryptToken returns the config-file form of the token.
func encryptToken(token string, in io.Reader, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("%s must be set", config.KeyEnv)
	}
	if token == "" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("token must not be empty")
	}
	enc, err := config.EncryptValue(token, passphrase)
	if err != nil {
		return "", err
	}
	return config.EncPrefix + enc, nil
}
