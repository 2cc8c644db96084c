package repl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// UserConfigFileName is the TOML config file for user preferences.
const UserConfigFileName = "config.toml"

// ImplDef describes one REPL implementation a session can launch.
type ImplDef struct {
	// Command is the shell-style launch command template.
	Command string `toml:"command"`

	// Echo marks implementations that echo input back on their output
	// stream, so the controller suppresses the duplicate display.
	Echo bool `toml:"echo"`

	// Prompt overrides the prompt pattern (anchored regex) used for
	// input-unit extraction. Empty uses the built-in default.
	Prompt string `toml:"prompt"`
}

// UserConfig maps implementation names to launch commands. It is
// consumed before the first Run call; the core never writes it.
type UserConfig struct {
	// DefaultImpl is the implementation used when none is named.
	DefaultImpl string `toml:"default_impl"`

	// Impls defines the available REPL implementations.
	Impls map[string]ImplDef `toml:"impls"`
}

var defaultUserConfig = UserConfig{
	DefaultImpl: "coffee",
	Impls: map[string]ImplDef{
		"coffee": {Command: "coffee", Echo: true, Prompt: `^coffee> `},
		"node":   {Command: "node --interactive", Echo: true, Prompt: `^> `},
	},
}

// GetReplDeckDir returns the base repl-deck directory. REPLDECK_DIR
// overrides the default ~/.repl-deck (tests point it at a temp dir).
func GetReplDeckDir() (string, error) {
	if dir := os.Getenv("REPLDECK_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".repl-deck"), nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() (string, error) {
	dir, err := GetReplDeckDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// LoadUserConfig loads the user configuration, caching it after the
// first read. Missing file returns the built-in defaults.
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if userConfigCache != nil {
		defer userConfigCacheMu.RUnlock()
		return userConfigCache, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()

	// Double-check after acquiring write lock
	if userConfigCache != nil {
		return userConfigCache, nil
	}

	configPath, err := GetUserConfigPath()
	if err != nil {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	var config UserConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		// Cache the defaults to prevent repeated parse attempts, but
		// surface the error so the caller can show it.
		userConfigCache = &defaultUserConfig
		return userConfigCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	if config.Impls == nil {
		config.Impls = make(map[string]ImplDef)
	}
	if config.DefaultImpl == "" {
		config.DefaultImpl = defaultUserConfig.DefaultImpl
	}
	// Built-in implementations remain available unless shadowed.
	for name, def := range defaultUserConfig.Impls {
		if _, ok := config.Impls[name]; !ok {
			config.Impls[name] = def
		}
	}

	userConfigCache = &config
	return userConfigCache, nil
}

// ReloadUserConfig clears the cache so the next load re-reads the file.
func ReloadUserConfig() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// ResolveImpl returns the implementation definition for name, falling
// back to the configured default when name is empty.
func (c *UserConfig) ResolveImpl(name string) (ImplDef, error) {
	if name == "" {
		name = c.DefaultImpl
	}
	def, ok := c.Impls[name]
	if !ok {
		return ImplDef{}, fmt.Errorf("unknown implementation %q", name)
	}
	if def.Command == "" {
		return ImplDef{}, fmt.Errorf("implementation %q has no command", name)
	}
	return def, nil
}

// WriteDefaultConfig writes a commented starter config if none exists.
func WriteDefaultConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		return nil // already exists, never clobber
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	content := `# repl-deck configuration

# Implementation used when 'run' is called without -impl.
default_impl = "coffee"

# Each implementation names a launch command. 'echo' marks REPLs that
# echo input back; 'prompt' is the anchored prompt regex used when
# reconstructing the current input unit.
[impls.coffee]
command = "coffee"
echo = true
prompt = '^coffee> '

[impls.node]
command = "node --interactive"
echo = true
prompt = '^> '
`
	return os.WriteFile(configPath, []byte(content), 0o644)
}
