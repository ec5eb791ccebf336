package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/livexpr/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// pathList collects repeated -policy flags.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("livexpr", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
livexpr - Live, incrementally re-evaluated expressions.

Usage:
  livexpr [options] [POLICY_PATH...]

Arguments:
  POLICY_PATH
    A .hcl, .yaml or .yml disposal policy file, or a directory of them.

Without -check the built-in demonstration runs with the loaded policy.

Options:
`)
		flagSet.PrintDefaults()
	}

	var policies pathList
	flagSet.Var(&policies, "policy", "Path to a policy file or directory. May be repeated.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	traceFlag := flagSet.Bool("trace", false, "Log every node evaluation and change notification at debug level.")
	checkFlag := flagSet.Bool("check", false, "Validate the policy and exit.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the /metrics and /health server. 0 is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append([]string(policies), flagSet.Args()...)
	slog.Debug("Policy paths determined.", "paths", paths)

	logLevel := strings.ToLower(*logLevelFlag)
	if *traceFlag {
		logLevel = "debug"
	}
	config, err := app.NewConfig(app.Config{
		PolicyPaths: paths,
		LogFormat:   strings.ToLower(*logFormatFlag),
		LogLevel:    logLevel,
		Trace:       *traceFlag,
		CheckOnly:   *checkFlag,
		MetricsPort: *metricsPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
