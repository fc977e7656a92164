// Where: internal/app/deps.go
// What: Injected dependencies for Run.
// Why: Swap the config store and output in tests.
package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/privatebox/create-apikey/internal/config"
	"github.com/privatebox/create-apikey/internal/configstore"
	"github.com/privatebox/create-apikey/internal/meta"
	"github.com/privatebox/create-apikey/internal/ports"
)

// StoreOpener builds the configuration-management handle for one run.
type StoreOpener func(settings config.Settings, logger *slog.Logger) (ports.ConfigManager, error)

// Dependencies holds everything Run needs from the outside world.
type Dependencies struct {
	Out          io.Writer
	SettingsPath string
	OpenStore    StoreOpener
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.SettingsPath == "" {
		d.SettingsPath = meta.SettingsPath
	}
	if d.OpenStore == nil {
		d.OpenStore = OpenConfigStore
	}
	return d
}

// OpenConfigStore opens the file-backed appliance configuration store.
func OpenConfigStore(settings config.Settings, logger *slog.Logger) (ports.ConfigManager, error) {
	opts := []configstore.Option{
		configstore.WithBackupCount(settings.Backups()),
		configstore.WithLogger(logger),
	}
	if settings.BackupDir != "" {
		opts = append(opts, configstore.WithBackupDir(settings.BackupDir))
	}
	store, err := configstore.Open(settings.ConfigPath, opts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}
