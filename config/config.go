package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultStatusEvery      = 1000
	defaultServerURL        = "http://localhost:8080"
	defaultRequestTimeout   = 30 * time.Second
	defaultReconnectTimeout = 5 * time.Minute
	defaultClientLogFile    = "driveindex-search.log"
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("database.kvdb_path")
	}

	return kvdbPath
}

// GetIndexPath returns the bleve index directory relative to the storage path.
// An empty value keeps the search index in memory.
func (c *Config) GetIndexPath() string {
	indexPath := c.config.GetString("INDEX_PATH")
	if len(indexPath) == 0 {
		indexPath = c.config.GetString("database.index_path")
	}

	return indexPath
}

func (c *Config) GetStoragePath() string {
	storagePath := c.config.GetString("STORAGE_PATH")
	if len(storagePath) == 0 {
		storagePath = c.config.GetString("database.storage_path")
	}

	return storagePath
}

// GetDrives returns the roots scanned by an indexing run. DRIVES is a comma separated list.
func (c *Config) GetDrives() []string {
	if drives := c.config.GetString("DRIVES"); len(drives) > 0 {
		return splitList(drives)
	}

	drives := c.config.GetStringSlice("index.drives")
	if len(drives) == 0 {
		return []string{string(filepath.Separator)}
	}

	return drives
}

func (c *Config) GetExcludedDirs() []string {
	if excluded := c.config.GetString("EXCLUDED_DIRS"); len(excluded) > 0 {
		return splitList(excluded)
	}

	return c.config.GetStringSlice("index.excluded_dirs")
}

func (c *Config) GetStatusEvery() int {
	statusEvery := c.config.GetInt("STATUS_EVERY")
	if statusEvery <= 0 {
		statusEvery = c.config.GetInt("index.status_every")
	}
	if statusEvery <= 0 {
		statusEvery = defaultStatusEvery
	}

	return statusEvery
}

func (c *Config) GetBuildOnStartup() bool {
	if c.config.IsSet("BUILD_ON_STARTUP") {
		return c.config.GetBool("BUILD_ON_STARTUP")
	}

	return c.config.GetBool("index.build_on_startup")
}

func (c *Config) GetServerURL() string {
	serverURL := c.config.GetString("SERVER_URL")
	if len(serverURL) == 0 {
		serverURL = c.config.GetString("client.server_url")
	}
	if len(serverURL) == 0 {
		serverURL = defaultServerURL
	}

	return strings.TrimRight(serverURL, "/")
}

func (c *Config) GetRequestTimeout() time.Duration {
	timeout := c.config.GetDuration("client.request_timeout")
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return timeout
}

// GetReconnectTimeout bounds how long the client keeps retrying a dropped progress stream.
func (c *Config) GetReconnectTimeout() time.Duration {
	timeout := c.config.GetDuration("client.reconnect_timeout")
	if timeout <= 0 {
		timeout = defaultReconnectTimeout
	}

	return timeout
}

// GetClientLogPath returns the file the interactive client logs to, keeping
// log lines out of the prompt.
func (c *Config) GetClientLogPath() string {
	logPath := c.config.GetString("CLIENT_LOG_PATH")
	if len(logPath) == 0 {
		logPath = c.config.GetString("client.log_path")
	}
	if len(logPath) == 0 {
		logPath = filepath.Join(os.TempDir(), defaultClientLogFile)
	}

	return logPath
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); len(item) > 0 {
			items = append(items, item)
		}
	}

	return items
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
