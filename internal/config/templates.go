package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = "# xferctl client configuration\n\n"

// Template renders DefaultClientConfig as TOML.
func Template() (string, error) {
	data, err := toml.Marshal(toFile(DefaultClientConfig()))
	if err != nil {
		return "", fmt.Errorf("config template marshal failed: %w", err)
	}
	return templateHeader + string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
