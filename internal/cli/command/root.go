package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/shardmesh-go/internal/cli/connection"
	"github.com/yndnr/shardmesh-go/internal/cli/output"
	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
)

// DefaultServer is the master's default admin address.
const DefaultServer = "127.0.0.1:5135"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "shardmesh-cli",
		Usage:   "Inspect and drive a shardmesh master",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			NodeCommand(),
			SendCommand(),
			RequestCommand(),
			HealthCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "master admin address (e.g., 127.0.0.1:5135)",
			EnvVars: []string{"SHARDMESH_ADMIN"},
			Value:   DefaultServer,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit the header row in table output",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server    string
	Output    string
	NoHeaders bool
	Verbose   bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:    c.String("server"),
		Output:    c.String("output"),
		NoHeaders: c.Bool("no-headers"),
		Verbose:   c.Bool("verbose"),
	}
}

// Format returns the selected output format.
func (f *GlobalFlags) Format() (output.Format, error) {
	switch format := output.Format(f.Output); format {
	case output.FormatTable, output.FormatJSON, output.FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", f.Output)
	}
}

// newClient returns an admin API client for --server. A zero timeout
// keeps the client default.
func newClient(c *cli.Context, timeout time.Duration) *connection.HTTPClient {
	return connection.NewHTTPClient(ParseGlobalFlags(c).Server, timeout)
}

// render writes data with the --output formatter. Table output renders
// table instead of data when it is non-nil.
func render(c *cli.Context, data any, table *output.Table) error {
	flags := ParseGlobalFlags(c)
	format, err := flags.Format()
	if err != nil {
		return err
	}
	if format == output.FormatTable && table != nil {
		data = table
	}
	return output.NewFormatter(format, flags.NoHeaders).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
