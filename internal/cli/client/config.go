package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	envUserID = "DOCQA_USER_ID"
	envAPIURL = "DOCQA_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the identity stored in config.json
type GlobalConfig struct {
	UserID string `json:"user_id"`
	APIURL string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "docqa"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete config file: %w", err)
	}

	return nil
}

// CredentialSource represents where the identity came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// ResolveIdentity applies the cascade flag -> env -> global config -> default
// to the user ID and the API URL independently. The source reported is the
// one the user ID came from.
func ResolveIdentity(flagUserID, flagAPIURL string) (CredentialSource, string, string, error) {
	source := SourceNone
	userID, apiURL := flagUserID, flagAPIURL
	if userID != "" {
		source = SourceFlag
	}

	if userID == "" {
		if userID = os.Getenv(envUserID); userID != "" {
			source = SourceEnv
		}
	}
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}

	if userID == "" || apiURL == "" {
		config, err := LoadGlobalConfig()
		if err != nil {
			return SourceNone, "", "", err
		}
		if config != nil {
			if userID == "" && config.UserID != "" {
				userID = config.UserID
				source = SourceGlobalConfig
			}
			if apiURL == "" {
				apiURL = config.APIURL
			}
		}
	}

	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return source, userID, apiURL, nil
}
