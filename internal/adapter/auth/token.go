// Package auth provides bearer token sources.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

// Static always returns the same token.
type Static string

// Token implements domain.TokenSource.
func (s Static) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", domain.NewDomainError("auth.Static", domain.ErrAuthInvalid, "no token configured")
	}
	return tok, nil
}

// Env reads the named environment variable on every call.
type Env string

// Token implements domain.TokenSource.
func (e Env) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(os.Getenv(string(e)))
	if tok == "" {
		return "", domain.NewDomainError("auth.Env", domain.ErrAuthInvalid, fmt.Sprintf("environment variable %s is empty", string(e)))
	}
	return tok, nil
}

// File re-reads the token file on every call so rotated tokens are picked up.
type File string

// Token implements domain.TokenSource.
func (f File) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", domain.NewDomainError("auth.File", domain.ErrAuthInvalid, err.Error())
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", domain.NewDomainError("auth.File", domain.ErrAuthInvalid, fmt.Sprintf("token file %s is empty", string(f)))
	}
	return tok, nil
}

// FromConfig picks a token file, then an env var, then the literal token.
// It returns nil when nothing is configured.
func FromConfig(cfg config.AuthConfig) domain.TokenSource {
	switch {
	case cfg.TokenFile != "":
		return File(cfg.TokenFile)
	case cfg.TokenEnv != "":
		return Env(cfg.TokenEnv)
	case cfg.Token != "":
		return Static(cfg.Token)
	default:
		return nil
	}
}

var (
	_ domain.TokenSource = Static("")
	_ domain.TokenSource = Env("")
	_ domain.TokenSource = File("")
)
