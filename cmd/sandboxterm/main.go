package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

func main() {
	args := os.Args[1:]
	command := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "help":
		showUsage()
		return
	case "run":
		err = runCreate(args)
	case "attach":
		err = runAttach(args)
	case "status":
		err = runStatus(args)
	case "encrypt-token":
		err = runEncryptToken(args)
	case "doctor":
		err = runDoctor(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'sandboxterm help' for usage information.\n", command)
		os.Exit(2)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`sandboxterm - terminal client for remote container sandboxes

USAGE:
    sandboxterm [COMMAND] [FLAGS]

COMMANDS:
    run             Create a sandbox, wait until it is ready and open its terminal (default)
    attach ID       Wait for an existing sandbox and open its terminal
    status ID       Print one status report for a sandbox
    encrypt-token   Encrypt a bearer token for the config file
    doctor          Run health checks on the configuration and backend
    help            Show this help message

FLAGS:
    --config PATH        Config file (default: ~/.sandboxterm/config.yaml)
    --project NAME       Project name of the new sandbox (run)
    --workspace ID       Workspace id (default: session.workspace_id)
    --description TEXT   Free-form description (run)
    --template NAME      Container template (default: session.template)
    --plain              Line-mode terminal without the full-screen console
    --log-level LEVEL    debug, info, warn or error

CONFIGURATION:
    Environment: SANDBOXTERM_* variables override the config file
    Secrets:     enc: values are decrypted with SANDBOXTERM_CONFIG_KEY

EXAMPLES:
    sandboxterm --project demo
    sandboxterm attach 7f3c2a --plain < commands.txt
    SANDBOXTERM_CONFIG_KEY=... sandboxterm encrypt-token < token.txt`)
}
