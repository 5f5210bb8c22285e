package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

// cliFlags holds the flags shared by the session commands.
type cliFlags struct {
	ConfigPath  string
	Project     string
	Workspace   string
	Description string
	Template    string
	Plain       bool
	LogLevel    string
}

func newFlagSet(name string, f *cliFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "config file path")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	return fs
}

func addSessionFlags(fs *pflag.FlagSet, f *cliFlags) {
	fs.StringVar(&f.Workspace, "workspace", "", "workspace id")
	fs.StringVar(&f.Template, "template", "", "container template")
	fs.BoolVar(&f.Plain, "plain", false, "line-mode terminal without the full-screen console")
}

func addCreateFlags(fs *pflag.FlagSet, f *cliFlags) {
	fs.StringVar(&f.Project, "project", "", "project name of the new sandbox")
	fs.StringVar(&f.Description, "description", "", "sandbox description")
}

// configPath resolves --config, then SANDBOXTERM_CONFIG, then the default.
func (f cliFlags) configPath() string {
	if f.ConfigPath != "" {
		return f.ConfigPath
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}

// apply folds flag values into cfg.
func (f cliFlags) apply(cfg *config.Config) {
	if f.LogLevel != "" {
		cfg.Logger.Level = f.LogLevel
	}
	if f.Workspace != "" {
		cfg.Session.WorkspaceID = f.Workspace
	}
	if f.Template != "" {
		cfg.Session.Template = f.Template
	}
	if f.Plain {
		cfg.UI.Plain = true
	}
}

// createParams builds the create-session request from flags and config.
func (f cliFlags) createParams(cfg *config.Config) (domain.CreateParams, error) {
	p := domain.CreateParams{
		WorkspaceID: cfg.Session.WorkspaceID,
		ProjectName: f.Project,
		Description: f.Description,
		Template:    cfg.Session.Template,
	}.Normalized()
	if err := p.Validate(); err != nil {
		return domain.CreateParams{}, fmt.Errorf("--project is required: %w", err)
	}
	return p, nil
}

// sessionArg returns the single positional session id.
func sessionArg(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", fmt.Errorf("expected exactly one session id")
	}
	return strings.TrimSpace(fs.Arg(0)), nil
}
