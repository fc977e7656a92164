// Where: internal/usecase/apikey/apikey.go
// What: One-shot API key generation for the appliance root account.
// Why: Hold the config lock from lookup through save and always report one result.
package apikey

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/privatebox/create-apikey/internal/meta"
	"github.com/privatebox/create-apikey/internal/ports"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"

	MsgUserNotFound  = "Root user not found"
	MsgGenerateEmpty = "Failed to generate API key"
)

var (
	ErrUserNotFound  = errors.New(MsgUserNotFound)
	ErrGenerateEmpty = errors.New(MsgGenerateEmpty)
)

// Kind classifies a failure. It is not part of the printed result.
type Kind string

const (
	KindNone             Kind = ""
	KindNotFound         Kind = "not_found"
	KindOperationFailure Kind = "operation_failure"
)

// Result is the single object printed for an invocation.
type Result struct {
	Outcome string `json:"result"`
	Key     string `json:"key,omitempty"`
	Secret  string `json:"secret,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"-"`
}

// Succeeded builds an ok result.
func Succeeded(cred ports.Credential) Result {
	return Result{Outcome: ResultOK, Key: cred.Key, Secret: cred.Secret}
}

// Failed builds a failed result from err.
func Failed(err error) Result {
	kind := KindOperationFailure
	if errors.Is(err, ErrUserNotFound) {
		kind = KindNotFound
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return Result{Outcome: ResultFailed, Error: msg, Kind: kind}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Outcome == ResultOK
}

// ExitCode maps the result to the process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// WriteTo prints the result as one JSON line.
func (r Result) WriteTo(w io.Writer) (int64, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(payload, '\n'))
	return int64(n), err
}

type options struct {
	logger *slog.Logger
}

// Option customizes Generate.
type Option func(*options)

// WithLogger routes progress and unlock failures to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Generate adds a new API key to the root user and saves the configuration.
// The store lock is released before Generate returns on every path,
// including a panic inside the store.
func Generate(store ports.ConfigManager, opts ...Option) (res Result) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("user", meta.RootUser)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("api key generation panicked", "panic", r)
			res = Failed(fmt.Errorf("%v", r))
		}
	}()

	if err := store.Lock(); err != nil {
		logger.Error("lock configuration", "error", err)
		return Failed(err)
	}
	defer func() {
		if err := store.Unlock(); err != nil {
			logger.Warn("unlock configuration", "error", err)
		}
	}()

	cred, err := addKey(store)
	if err != nil {
		logger.Error("api key generation failed", "error", err)
		return Failed(err)
	}
	logger.Info("api key generated", "key", cred.Key)
	return Succeeded(cred)
}

func addKey(store ports.ConfigManager) (ports.Credential, error) {
	user, err := store.UserByName(meta.RootUser)
	if err != nil {
		return ports.Credential{}, err
	}
	if user == nil {
		return ports.Credential{}, ErrUserNotFound
	}

	cred, err := user.AddAPIKey()
	if err != nil {
		return ports.Credential{}, err
	}
	if cred.Empty() {
		return ports.Credential{}, ErrGenerateEmpty
	}

	if err := store.SerializeToConfig(); err != nil {
		return ports.Credential{}, err
	}
	if err := store.Save(); err != nil {
		return ports.Credential{}, err
	}
	return cred, nil
}
