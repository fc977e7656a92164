// Where: internal/meta/meta.go
// What: Tool metadata and appliance layout constants.
// Why: Keep names and default paths in one place.
package meta

const (
	// Tool Identity
	AppName = "create-apikey"

	// Appliance Layout
	ConfigPath   = "/conf/config.xml"
	SettingsPath = "/usr/local/etc/create-apikey.yaml"

	// Account
	RootUser = "root"

	// Backups retained after each save.
	DefaultBackupCount = 60
)

// RevisionUser is recorded in the configuration revision stamp.
const RevisionUser = RootUser + "@" + AppName
