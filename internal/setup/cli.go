package setup

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLI implements the "setup" subcommand of the standalone server.
type CLI struct {
	out io.Writer
}

// NewCLI creates a new setup CLI instance.
func NewCLI(out io.Writer) *CLI {
	return &CLI{out: out}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.help()
		return nil
	}

	switch args[0] {
	case "register":
		return c.register(args[1:])
	case "status":
		return c.status(args[1:])
	case "help", "--help", "-h":
		c.help()
		return nil
	default:
		c.help()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *CLI) help() {
	fmt.Fprint(c.out, `NutriCheck MCP server setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  register   Register the server with the desktop MCP client
  status     Show the current registration

Options for register:
  --config PATH       client config file (default: platform location)
  --binary PATH       server binary (default: this executable)
  --data-dir PATH     data directory for screenings and exports
  --practice-id ID    practice screenings are filed under
  --language LANG     default report language (de, en, ru)
`)
}

func (c *CLI) register(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.out)

	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "client config file")
	fs.StringVar(&opts.BinaryPath, "binary", "", "server binary")
	fs.StringVar(&opts.DataDir, "data-dir", "", "data directory")
	fs.StringVar(&opts.PracticeID, "practice-id", "", "practice id")
	fs.StringVar(&opts.Language, "language", "", "report language")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving executable: %w", err)
		}
		opts.BinaryPath = exe
	}

	path, err := Register(opts)
	if err != nil {
		return fmt.Errorf("registering server: %w", err)
	}

	fmt.Fprintf(c.out, "Registered %q in %s\n", ServerName, path)
	fmt.Fprintln(c.out, "Restart the client to load the new configuration.")
	return nil
}

func (c *CLI) status(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(c.out)
	configPath := fs.String("config", "", "client config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	status, err := GetStatus(*configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config file:    %s\n", status.ConfigPath)
	if status.Registered {
		fmt.Fprintf(c.out, "Registered:     yes (%s)\n", status.ServerPath)
	} else {
		fmt.Fprintln(c.out, "Registered:     no")
	}
	fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}
