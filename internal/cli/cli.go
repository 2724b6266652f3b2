package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/printgraph/internal/app"
	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/specialistvlad/printgraph/internal/storage"
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

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("printgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
printgraph - Renders print jobs by running a graph of processors over a request.

Usage:
  printgraph [options] [TEMPLATE_PATH]

Arguments:
  TEMPLATE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Examples:
  printgraph -request request.json -sweep rotation=23,90,180 -out results ./template

Options:
`)
		flagSet.PrintDefaults()
	}

	templateFlag := flagSet.String("template", "", "Path to the template file or directory.")
	tFlag := flagSet.String("t", "", "Path to the template file or directory (shorthand).")
	requestFlag := flagSet.String("request", "", "Path to the request JSON. Omit to use attribute defaults only.")
	sweepFlag := flagSet.String("sweep", "", "Run once per value of an attribute, e.g. 'rotation=23,90,180'.")
	outFlag := flagSet.String("out", "", "Directory for result documents, one per run. Empty disables them.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers per execution. 0 uses GOMAXPROCS.")
	maxWorkersFlag := flagSet.Int("max-workers", 0, "Upper bound for workers. 0 is unbounded.")
	heavyLimitFlag := flagSet.Int("heavy-limit", 0, "Maximum concurrent heavy processors. 0 is unbounded.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Timeout for each execution, e.g. '30s'. 0 disables it.")
	cancelPolicyFlag := flagSet.String("cancel-policy", "run-to-completion", "What happens to running processors after a failure. Options: 'run-to-completion' or 'eager'.")
	storageFlag := flagSet.String("storage", app.StorageFile, "Where rendered assets go. Options: 'file', 'memory' or 'azure'.")
	storageDirFlag := flagSet.String("storage-dir", "assets", "Root directory for file storage.")
	azureConnFlag := flagSet.String("azure-connection-string", "", "Azure storage connection string for azure storage.")
	azureContainerFlag := flagSet.String("azure-container", "", "Azure blob container for azure storage.")
	azurePrefixFlag := flagSet.String("azure-prefix", "", "Prefix for every blob name.")
	otlpFlag := flagSet.String("otlp-endpoint", "", "OTLP/HTTP collector host:port. Empty disables tracing.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *templateFlag != "" {
		path = *templateFlag
	} else if *tFlag != "" {
		path = *tFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Template path determined.", "path", path)

	if path == "" {
		slog.Debug("No template path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	policy, err := engine.ParseCancelPolicy(*cancelPolicyFlag)
	if err != nil {
		return nil, false, usageError("%v", err)
	}

	sweepAttr, sweepValues, err := ParseSweep(*sweepFlag)
	if err != nil {
		return nil, false, usageError("%v", err)
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		TemplatePath:   path,
		RequestPath:    *requestFlag,
		OutDir:         *outFlag,
		SweepAttribute: sweepAttr,
		SweepValues:    sweepValues,
		Engine: engine.Config{
			Workers:      *workersFlag,
			MaxWorkers:   *maxWorkersFlag,
			HeavyLimit:   *heavyLimitFlag,
			Timeout:      *timeoutFlag,
			CancelPolicy: policy,
		},
		Storage:    strings.ToLower(*storageFlag),
		StorageDir: *storageDirFlag,
		Azure: storage.AzureBlobConfig{
			ConnectionString: *azureConnFlag,
			Container:        *azureContainerFlag,
			Prefix:           *azurePrefixFlag,
		},
		OTLPEndpoint: *otlpFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "template", config.TemplatePath, "jobs", max(1, len(config.SweepValues)))
	return config, false, nil
}

// ParseSweep splits a sweep flag of the form "name=v1,v2,..." into the
// attribute name and its values. An empty flag means no sweep.
func ParseSweep(s string) (string, []string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, nil
	}
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid sweep %q: expected 'attribute=value,value,...'", s)
	}

	var values []string
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("invalid sweep %q: no values", s)
	}
	return name, values, nil
}

