package config

import (
	"bufio"
	"os"
	"strings"

	"go.uber.org/zap"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file into the process
// environment. Existing variables win over file values. Secret-looking keys
// are logged masked.
func LoadDotEnv(path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
		logger.Debug("env loaded", zap.String("key", key), zap.String("value", maskSecret(key, value)))
	}
	return scanner.Err()
}

func maskSecret(key, value string) string {
	upper := strings.ToUpper(key)
	if !strings.Contains(upper, "KEY") && !strings.Contains(upper, "TOKEN") && !strings.Contains(upper, "SECRET") {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + strings.Repeat("*", len(value)-4)
}
