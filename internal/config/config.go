package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes the environment variables that override settings,
	// e.g. DIRSNAP_HOME or DIRSNAP_SNAPSHOT_DIR.
	EnvPrefix = "DIRSNAP"

	DefaultSettingsDir  = ".dir_snapshot"
	DefaultSnapshotDir  = "snapshots"
	DefaultRegistryFile = "dir_snapshot.json"
	DefaultSnapshotExt  = ".snp"
)

// Settings locates the registry file and the snapshot store.
type Settings struct {
	// Home is the settings directory.
	Home string `mapstructure:"home"`
	// SnapshotDir holds snapshot files. Relative values are inside Home.
	SnapshotDir string `mapstructure:"snapshot_dir"`
	// RegistryFile is the registry document. Relative values are inside Home.
	RegistryFile string `mapstructure:"registry_file"`
	// SnapshotExt is appended to every snapshot file name.
	SnapshotExt string `mapstructure:"snapshot_ext"`
}

// Load resolves the settings. Precedence, highest first: DIRSNAP_*
// environment variables, config.yaml in the settings directory, defaults
// rooted at userHome.
func Load(fsys afero.Fs, userHome string) (*Settings, error) {
	v := viper.New()
	v.SetFs(fsys)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("home", filepath.Join(userHome, DefaultSettingsDir))
	v.SetDefault("snapshot_dir", DefaultSnapshotDir)
	v.SetDefault("registry_file", DefaultRegistryFile)
	v.SetDefault("snapshot_ext", DefaultSnapshotExt)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString("home"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if s.Home == "" {
		return nil, errors.New("settings directory cannot be empty")
	}
	s.SnapshotDir = s.inHome(s.SnapshotDir)
	s.RegistryFile = s.inHome(s.RegistryFile)
	return &s, nil
}

func (s *Settings) inHome(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.Home, p)
}

// Ensure creates the settings directory and the snapshot store.
func (s *Settings) Ensure(fsys afero.Fs) error {
	for _, dir := range []string{s.Home, s.SnapshotDir} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
