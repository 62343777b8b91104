package defs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that take precedence over the config file.
const (
	EnvMongoURI       = "GENGAR_MONGO_URI"
	EnvDexcomAccount  = "GENGAR_DEXCOM_ACCOUNT"
	EnvDexcomPassword = "GENGAR_DEXCOM_PASSWORD"
	EnvHTTPAddr       = "GENGAR_HTTP_ADDR"
)

// LoadConfig decodes the yaml file at path over DefaultConfig and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("unable to read config file: %w", err)
	}
	if err = yaml.Unmarshal(file, &config); err != nil {
		return config, fmt.Errorf("unable to decode config file: %w", err)
	}

	overrides := map[string]*string{
		EnvMongoURI:       &config.Mongo.URI,
		EnvDexcomAccount:  &config.Dexcom.Account,
		EnvDexcomPassword: &config.Dexcom.Password,
		EnvHTTPAddr:       &config.HTTP.Addr,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}

	if config.Analysis.Interval <= 0 {
		return config, fmt.Errorf("analysis interval must be positive, got %v", config.Analysis.Interval)
	}
	return config, nil
}
