// Where: cmd/create-apikey/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction for testability.
package main

import (
	"io"
	"os"

	"github.com/privatebox/create-apikey/internal/app"
	"github.com/privatebox/create-apikey/internal/meta"
)

var stdout io.Writer = os.Stdout

// buildDependencies constructs the production dependencies: stdout for the
// result, the appliance settings path and the file-backed config store.
func buildDependencies() app.Dependencies {
	return app.Dependencies{
		Out:          stdout,
		SettingsPath: meta.SettingsPath,
		OpenStore:    app.OpenConfigStore,
	}
}
