package session

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/microstorm/internal/config"
	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/vfs"
)

// Store reads and writes the settings file.
//
// The settings file next to the executable wins when it exists, which lets a
// portable install carry its own session. Otherwise the file lives in the
// per-user data directory and is created as "{}" on first use.
type Store struct {
	fs     vfs.VFS
	paths  config.Paths
	logger *logging.Logger
}

// NewStore creates a Store over fsys.
func NewStore(fsys vfs.VFS, paths config.Paths, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		fs:     fsys,
		paths:  paths,
		logger: logger.WithComponent("session"),
	}
}

// Path resolves the settings file, creating an empty one in the data
// directory when neither candidate exists. A failure to create it is logged
// and the data directory path is still returned.
func (s *Store) Path() string {
	appPath := s.paths.AppSettingsPath()
	if s.fs.IsRegular(appPath) {
		return appPath
	}

	dataPath := s.paths.DataSettingsPath()
	if s.fs.Exists(dataPath) {
		return dataPath
	}

	s.logger.Debug("creating settings file: %s", dataPath)
	if err := s.fs.MkdirAll(s.paths.DataDir, 0o755); err != nil {
		s.logger.Error("unable to create settings file %s: %v", dataPath, err)
		return dataPath
	}
	if err := s.fs.WriteFile(dataPath, []byte("{}"), 0o644); err != nil {
		s.logger.Error("unable to create settings file %s: %v", dataPath, err)
	}
	return dataPath
}

// Load returns the persisted session. It never fails: a missing, unreadable
// or unparseable file yields Default().
func (s *Store) Load() Session {
	path := s.Path()

	sess, err := s.read(path)
	if err != nil {
		s.logger.Error("settings file %s could not be parsed: %v", path, err)
		return Default()
	}

	if !sess.Theme.Valid() {
		s.logger.Warn("unknown theme %q, using %s", sess.Theme, ThemeDay)
		sess.Theme = ThemeDay
	}
	if sess.ActiveMode == "" {
		sess.ActiveMode = DefaultMode
	}
	s.logger.Info("restoring session from: %s", path)
	return sess
}

// read decodes the settings file on top of the defaults, so absent keys keep
// their default values. A missing file is the empty session.
func (s *Store) read(path string) (Session, error) {
	sess := Default()

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if vfs.IsNotExist(err) {
			return sess, nil
		}
		return sess, err
	}

	if err := json.Unmarshal(data, &sess); err != nil {
		return Default(), err
	}
	return sess, nil
}

// Save overwrites the settings file with sess as indented JSON. The write is
// atomic; its failure is returned.
func (s *Store) Save(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	path := s.Path()
	s.logger.Debug("saving session to: %s", path)
	if err := s.fs.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// WorkspaceDir returns the directory scripts are loaded from and saved to:
// the "workspace" setting when it names an existing directory, otherwise
// <home>/mu_code.
func (s *Store) WorkspaceDir() string {
	fallback := s.paths.DefaultWorkspace()
	path := s.Path()

	data, err := s.fs.ReadFile(path)
	if err != nil {
		s.logger.Error("settings file %s does not exist", path)
		return fallback
	}

	var settings struct {
		Workspace *string `json:"workspace"`
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.Error("settings file %s could not be parsed", path)
		return fallback
	}
	if settings.Workspace == nil {
		s.logger.Debug("no workspace in %s, using %s", path, fallback)
		return fallback
	}
	if !s.fs.IsDir(*settings.Workspace) {
		s.logger.Error("workspace %s in the settings file is not a valid directory", *settings.Workspace)
		return fallback
	}
	return *settings.Workspace
}

// EnsureWorkspace creates the workspace directory if needed and returns it.
func (s *Store) EnsureWorkspace() (string, error) {
	dir := s.WorkspaceDir()
	if s.fs.IsDir(dir) {
		return dir, nil
	}
	s.logger.Debug("creating directory: %s", dir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return dir, fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}
