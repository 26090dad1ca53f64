package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
	"strings"
)

const Name = "glyptodon"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host             string
		SshPort          int      `yaml:"sshPort"`
		HttpPort         int      `yaml:"httpPort"`
		SslDomain        string   `yaml:"sslDomain"`
		WithFederation   bool     `yaml:"withFederation"`
		Closed           bool     `yaml:"closed"`
		StrictAllowlist  bool     `yaml:"strictAllowlist"`
		AllowedInstances []string `yaml:"allowedInstances"`
		BlockedInstances []string `yaml:"blockedInstances"`
		EnableDownvotes  bool     `yaml:"enableDownvotes"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("GLYPTODON_HOST")
	envSshPort := os.Getenv("GLYPTODON_SSHPORT")
	envHttpPort := os.Getenv("GLYPTODON_HTTPPORT")
	envSslDomain := os.Getenv("GLYPTODON_SSLDOMAIN")
	envFederation := os.Getenv("GLYPTODON_FEDERATION")
	envClosed := os.Getenv("GLYPTODON_CLOSED")
	envStrict := os.Getenv("GLYPTODON_STRICT_ALLOWLIST")
	envAllowed := os.Getenv("GLYPTODON_ALLOWED_INSTANCES")
	envBlocked := os.Getenv("GLYPTODON_BLOCKED_INSTANCES")
	envDownvotes := os.Getenv("GLYPTODON_ENABLE_DOWNVOTES")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envSshPort != "" {
		v, err := strconv.Atoi(envSshPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.SshPort = v
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envSslDomain != "" {
		c.Conf.SslDomain = envSslDomain
	}

	if envFederation == "true" {
		c.Conf.WithFederation = true
	}

	if envClosed == "true" {
		c.Conf.Closed = true
	}

	if envStrict == "true" {
		c.Conf.StrictAllowlist = true
	}

	if envAllowed != "" {
		c.Conf.AllowedInstances = splitInstanceList(envAllowed)
	}

	if envBlocked != "" {
		c.Conf.BlockedInstances = splitInstanceList(envBlocked)
	}

	if envDownvotes == "true" {
		c.Conf.EnableDownvotes = true
	} else if envDownvotes == "false" {
		c.Conf.EnableDownvotes = false
	}

	return c, nil
}

// splitInstanceList splits a comma-separated domain list from an env var
func splitInstanceList(raw string) []string {
	parts := strings.Split(raw, ",")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			domains = append(domains, p)
		}
	}
	return domains
}
