// Where: internal/ports/config_manager.go
// What: Configuration-management collaborator contracts.
// Why: Let the key generator drive any config store through an explicit handle.
package ports

// Credential is an API key/secret pair as handed back to the caller.
type Credential struct {
	Key    string
	Secret string
}

// Empty reports whether the credential is missing either half.
func (c Credential) Empty() bool {
	return c.Key == "" || c.Secret == ""
}

// User is a user record loaded from the configuration store.
type User interface {
	Name() string
	// AddAPIKey stages a new credential on the in-memory record and returns it.
	AddAPIKey() (Credential, error)
}

// ConfigManager is an exclusive handle over the appliance configuration store.
type ConfigManager interface {
	// Lock blocks until the exclusive advisory lock is held.
	Lock() error
	// Unlock releases the lock. Safe to call when nothing is held.
	Unlock() error
	// UserByName returns nil and no error when the user does not exist.
	UserByName(name string) (User, error)
	SerializeToConfig() error
	Save() error
}
