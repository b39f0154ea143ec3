package config

import (
	"io/ioutil"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/ghodss/yaml"
	validator "gopkg.in/go-playground/validator.v9"
)

// AppForgeConfig holds the tunables of the CLI. Per-user state (forge
// address, account key) lives in ~/.appforge instead.
type AppForgeConfig struct {
	Forge   ForgeConfig `json:"forge"`
	IsTrace bool        `json:"trace" env:"APPFORGE_TRACE"`
}

type ForgeConfig struct {
	PollIntervalSeconds int    `json:"poll_interval_seconds" env:"APPFORGE_POLL_INTERVAL" validate:"gte=0"`
	PollTimeoutSeconds  int    `json:"poll_timeout_seconds" env:"APPFORGE_POLL_TIMEOUT" validate:"gte=0"`
	S3Connection        string `json:"s3_connection" env:"APPFORGE_S3_CONNECTION"`
	HistoryMax          int    `json:"history_max" env:"APPFORGE_HISTORY_MAX" validate:"gte=0"`
}

// LoadConfig loads the optional YAML config file, then applies environment
// overrides. Missing files fall back to defaults.
func LoadConfig() (config AppForgeConfig, err error) {
	config = AppForgeConfig{
		Forge: ForgeConfig{
			PollIntervalSeconds: 5,
			PollTimeoutSeconds:  1800,
			HistoryMax:          1000,
		},
	}

	configPaths := []string{
		"/etc/appforge/config.yml",
	}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		configPaths = append([]string{home + "/.appforge/config.yml"}, configPaths...)
	}
	if custom := os.Getenv("APPFORGE_CONFIG_PATH"); len(custom) > 0 {
		configPaths = []string{custom}
	}

	for _, path := range configPaths {
		yamlFile, readErr := ioutil.ReadFile(path)
		if readErr != nil {
			continue
		}
		log.Println("load config from:", path)
		err = yaml.Unmarshal(yamlFile, &config)
		if err != nil {
			return
		}
		break
	}

	err = env.Parse(&config)
	if err != nil {
		return
	}

	validate := validator.New()
	err = validate.Struct(config)

	return
}
