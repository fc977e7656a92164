// Where: internal/configstore/store.go
// What: File-backed appliance configuration store with an advisory lock.
// Why: Provide ports.ConfigManager over config.xml the way other appliance writers share it.
package configstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/privatebox/create-apikey/internal/credential"
	"github.com/privatebox/create-apikey/internal/meta"
	"github.com/privatebox/create-apikey/internal/ports"
	"golang.org/x/sys/unix"
)

// Store implements ports.ConfigManager. It is not safe for concurrent use;
// the flock only coordinates separate open descriptions of the file.
type Store struct {
	path        string
	backupDir   string
	backupCount int
	keys        KeyGenerator
	now         func() time.Time
	logger      *slog.Logger

	file    *os.File
	raw     []byte
	doc     *Document
	users   map[string]*user
	changed []string
}

var _ ports.ConfigManager = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithBackupDir sets where pre-save copies are written.
func WithBackupDir(dir string) Option {
	return func(s *Store) { s.backupDir = dir }
}

// WithBackupCount sets how many backups are retained. Zero disables backups.
func WithBackupCount(n int) Option {
	return func(s *Store) { s.backupCount = n }
}

// WithKeyGenerator replaces the credential source.
func WithKeyGenerator(keys KeyGenerator) Option {
	return func(s *Store) { s.keys = keys }
}

// WithClock replaces time.Now for revision stamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for lock and save events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open prepares a store for the configuration file at path. The file is
// not read until Lock.
func Open(path string, opts ...Option) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	s := &Store{
		path:        path,
		backupDir:   filepath.Join(filepath.Dir(path), "backup"),
		backupCount: meta.DefaultBackupCount,
		keys:        credential.Default,
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.path
}

// Lock takes an exclusive flock on the configuration file, blocking until it
// is available, then loads the document from the locked descriptor.
func (s *Store) Lock() error {
	if s.file != nil {
		return ErrAlreadyLocked
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := flock(f, unix.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	s.file = f
	s.logger.Debug("configuration locked", "path", s.path)

	if err := s.load(); err != nil {
		_ = s.Unlock()
		return err
	}
	return nil
}

func (s *Store) load() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	raw, err := io.ReadAll(s.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return err
	}
	s.raw = raw
	s.doc = doc
	s.users = map[string]*user{}
	s.changed = nil
	return nil
}

// Unlock releases the lock and drops the loaded document. It is a no-op when
// the store is not locked.
func (s *Store) Unlock() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	s.raw = nil
	s.doc = nil
	s.users = nil
	s.changed = nil

	err := errors.Join(flock(f, unix.LOCK_UN), f.Close())
	if err != nil {
		return fmt.Errorf("unlock %s: %w", s.path, err)
	}
	s.logger.Debug("configuration unlocked", "path", s.path)
	return nil
}

// UserByName looks up a user under <system>. It returns nil, nil when no
// user has that name.
func (s *Store) UserByName(name string) (ports.User, error) {
	if s.doc == nil {
		return nil, ErrNotLocked
	}
	if u, ok := s.users[name]; ok {
		return u, nil
	}
	node, err := findUserNode(s.doc.Root, name)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	u := &user{node: node, keys: s.keys}
	s.users[name] = u
	return u, nil
}

// APIKeys lists the stored keys of a user, or nil if the user is unknown.
func (s *Store) APIKeys(name string) ([]APIKey, error) {
	found, err := s.UserByName(name)
	if err != nil || found == nil {
		return nil, err
	}
	return found.(*user).APIKeys(), nil
}

// SerializeToConfig moves staged user changes into the document.
func (s *Store) SerializeToConfig() error {
	if s.doc == nil {
		return ErrNotLocked
	}
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s.users[name].flush() {
			s.changed = append(s.changed, name)
		}
	}
	return nil
}

// Save stamps the revision, backs up the current file and rewrites it in
// place through the locked descriptor. The lock stays held.
func (s *Store) Save() error {
	if s.file == nil || s.doc == nil {
		return ErrNotLocked
	}
	now := s.now()
	s.stampRevision(now)

	data, err := s.doc.Bytes()
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if err := s.backup(now); err != nil {
		return err
	}
	if _, err := s.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.file.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("truncate %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	s.raw = data
	s.logger.Info("configuration saved", "path", s.path, "changed_users", s.changed)
	s.changed = nil
	return nil
}

func (s *Store) stampRevision(now time.Time) {
	description := meta.AppName + ": configuration saved"
	if len(s.changed) > 0 {
		description = fmt.Sprintf("%s: added API key for %s", meta.AppName, strings.Join(s.changed, ", "))
	}
	revision := s.doc.Root.Ensure("revision")
	revision.SetChildText("username", meta.RevisionUser)
	revision.SetChildText("time", revisionTime(now))
	revision.SetChildText("description", description)
}

func revisionTime(now time.Time) string {
	return fmt.Sprintf("%d.%04d", now.Unix(), now.Nanosecond()/100000)
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
