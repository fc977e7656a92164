// Where: internal/app/app.go
// What: CLI entrypoint logic.
// Why: Parse flags, wire settings and logging, run the key generator and print one result.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/privatebox/create-apikey/internal/config"
	"github.com/privatebox/create-apikey/internal/logging"
	"github.com/privatebox/create-apikey/internal/meta"
	"github.com/privatebox/create-apikey/internal/usecase/apikey"
	"github.com/privatebox/create-apikey/internal/version"
)

// CLI defines the command-line interface parsed by Kong. Every flag is
// optional; a bare invocation uses the appliance defaults.
type CLI struct {
	Config   string           `name:"config" type:"path" help:"Path to the appliance configuration file (default: ${config_path})"`
	Settings string           `name:"settings" type:"path" help:"Path to the settings file (default: ${settings_path}, if present)"`
	LogFile  string           `name:"log-file" type:"path" help:"Append structured logs to this file"`
	LogLevel string           `name:"log-level" help:"Log level: debug, info, warn, error"`
	Version  kong.VersionFlag `help:"Show version information"`
}

// Run is the main entry point. It always prints exactly one JSON result to
// deps.Out unless help or version output was requested. Returns 0 on
// success, 1 on any failure.
func Run(args []string, deps Dependencies) int {
	deps = deps.withDefaults()
	out := deps.Out

	cli := CLI{}
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name(meta.AppName),
		kong.Description("Generate an API key and secret for the appliance root account."),
		kong.Writers(out, out),
		kong.Exit(func(code int) {
			if exitCode < 0 {
				exitCode = code
			}
		}),
		kong.Vars{
			"version":       version.String(),
			"config_path":   meta.ConfigPath,
			"settings_path": deps.SettingsPath,
		},
	)
	if err != nil {
		return emit(out, apikey.Failed(err))
	}

	_, parseErr := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if parseErr != nil {
		return emit(out, apikey.Failed(parseErr))
	}

	settings, err := resolveSettings(cli, deps)
	if err != nil {
		return emit(out, apikey.Failed(err))
	}

	logger, closer, err := logging.Open(settings.LogFile, settings.LogLevel)
	if err != nil {
		return emit(out, apikey.Failed(err))
	}
	defer closer.Close()
	logger = logger.With("app", meta.AppName, "version", version.String())

	store, err := deps.OpenStore(settings, logger)
	if err != nil {
		logger.Error("open configuration store", "path", settings.ConfigPath, "error", err)
		return emit(out, apikey.Failed(err))
	}

	return emit(out, apikey.Generate(store, apikey.WithLogger(logger)))
}

// resolveSettings layers flags over the settings file over defaults. An
// explicit --settings must exist; the default location is optional.
func resolveSettings(cli CLI, deps Dependencies) (config.Settings, error) {
	path, optional := cli.Settings, false
	if path == "" {
		path, optional = deps.SettingsPath, true
	}
	settings, err := config.Load(path, optional)
	if err != nil {
		return config.Settings{}, err
	}
	settings = settings.Merge(config.Settings{
		ConfigPath: cli.Config,
		LogFile:    cli.LogFile,
		LogLevel:   cli.LogLevel,
	})
	if _, err := logging.ParseLevel(settings.LogLevel); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func emit(out io.Writer, res apikey.Result) int {
	if _, err := res.WriteTo(out); err != nil {
		fmt.Fprintf(os.Stderr, "%s: write result: %v\n", meta.AppName, err)
		return 1
	}
	return res.ExitCode()
}
