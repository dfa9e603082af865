package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// parseYAML decodes the config document strictly: unknown keys are errors.
// An empty document is allowed and leaves everything to defaults and env.
func parseYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// loadDotEnv reads .env from the working directory, or the file named by
// TC_ENV_FILE. A missing default file is fine; existing variables win.
func loadDotEnv() error {
	path, explicit := os.LookupEnv("TC_ENV_FILE")
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
