package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName              = "trustflow"
	defaultDataDirectory = ".trustflow"
)

// APIConfig locates the backend and bounds its calls.
type APIConfig struct {
	BaseURL         string        `json:"baseURL"`
	RequestTimeout  time.Duration `json:"requestTimeout"`
	GenerateTimeout time.Duration `json:"generateTimeout"`
}

// ModelsConfig is the closed text/image model enumeration used by the chat
// mode toggle.
type ModelsConfig struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// GenerationConfig carries the default generation parameters.
type GenerationConfig struct {
	Temperature       float64 `json:"temperature"`
	ImageSize         string  `json:"imageSize"`
	NumInferenceSteps int     `json:"numInferenceSteps"`
	BatchSize         int     `json:"batchSize"`
}

// AuthConfig configures the wallet login flow.
type AuthConfig struct {
	WalletAddress string `json:"walletAddress,omitempty"`
	SignerCommand string `json:"signerCommand,omitempty"`
}

// TUIConfig defines terminal UI configuration.
type TUIConfig struct {
	Theme string `json:"theme"`
}

// Data defines storage configuration.
type Data struct {
	Directory string `json:"directory,omitempty"`
}

// Config is the main configuration structure for the application.
type Config struct {
	API        APIConfig        `json:"api"`
	Models     ModelsConfig     `json:"models"`
	Generation GenerationConfig `json:"generation"`
	Auth       AuthConfig       `json:"auth"`
	TUI        TUIConfig        `json:"tui"`
	Data       Data             `json:"data"`
	Debug      bool             `json:"debug,omitempty"`
}

// Load initializes the configuration from config files and environment
// variables.
func Load(debug bool) (*Config, error) {
	configureViper()
	setDefaults(debug)

	if err := readConfig(viper.ReadInConfig()); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Data.Directory == "" {
		cfg.Data.Directory = defaultDataDir()
	}
	cfg.Data.Directory = expandHome(cfg.Data.Directory)
	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment
// variables.
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults configures default values for configuration options.
func setDefaults(debug bool) {
	viper.SetDefault("api.baseURL", "http://localhost:8000/api/v1")
	viper.SetDefault("api.requestTimeout", 30*time.Second)
	viper.SetDefault("api.generateTimeout", 5*time.Minute)

	viper.SetDefault("models.text", "TrustFlow-V1")
	viper.SetDefault("models.image", "TrustFlow-Image-V1")

	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.imageSize", "1024x1024")
	viper.SetDefault("generation.numInferenceSteps", 20)
	viper.SetDefault("generation.batchSize", 1)

	viper.SetDefault("tui.theme", "mocha")
	viper.SetDefault("data.directory", defaultDataDir())

	if debug {
		viper.SetDefault("debug", true)
	}
}

// readConfig tolerates a missing config file; defaults and environment
// variables are a complete configuration on their own.
func readConfig(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirectory
	}
	return filepath.Join(home, defaultDataDirectory)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
