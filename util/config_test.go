package util

import (
	"os"
	"testing"
)

func TestConfigConstants(t *testing.T) {
	if Name != "glyptodon" {
		t.Errorf("Expected Name 'glyptodon', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	// Create a test config file
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
  withFederation: true
  enableDownvotes: true
  blockedInstances:
    - spam.example
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.SshPort != 23232 {
		t.Errorf("Expected SshPort 23232, got %d", config.Conf.SshPort)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "example.com" {
		t.Errorf("Expected SslDomain 'example.com', got '%s'", config.Conf.SslDomain)
	}

	if !config.Conf.WithFederation {
		t.Error("Expected WithFederation to be true")
	}

	if !config.Conf.EnableDownvotes {
		t.Error("Expected EnableDownvotes to be true")
	}

	if len(config.Conf.BlockedInstances) != 1 || config.Conf.BlockedInstances[0] != "spam.example" {
		t.Errorf("Expected one blocked instance, got %v", config.Conf.BlockedInstances)
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	// Create a test config file
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
  withFederation: false
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	// Set environment variables
	os.Setenv("GLYPTODON_HOST", "192.168.1.1")
	os.Setenv("GLYPTODON_SSHPORT", "2222")
	os.Setenv("GLYPTODON_HTTPPORT", "8080")
	os.Setenv("GLYPTODON_SSLDOMAIN", "test.example.com")
	os.Setenv("GLYPTODON_FEDERATION", "true")
	os.Setenv("GLYPTODON_BLOCKED_INSTANCES", "Spam.Example, bad.example")

	defer func() {
		os.Unsetenv("GLYPTODON_HOST")
		os.Unsetenv("GLYPTODON_SSHPORT")
		os.Unsetenv("GLYPTODON_HTTPPORT")
		os.Unsetenv("GLYPTODON_SSLDOMAIN")
		os.Unsetenv("GLYPTODON_FEDERATION")
		os.Unsetenv("GLYPTODON_BLOCKED_INSTANCES")
	}()

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Environment variables should override YAML values
	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}

	if config.Conf.SshPort != 2222 {
		t.Errorf("Expected SshPort 2222 from env, got %d", config.Conf.SshPort)
	}

	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "test.example.com" {
		t.Errorf("Expected SslDomain 'test.example.com' from env, got '%s'", config.Conf.SslDomain)
	}

	if !config.Conf.WithFederation {
		t.Error("Expected WithFederation to be true from env")
	}

	// The env list is split, trimmed and lowercased
	if len(config.Conf.BlockedInstances) != 2 {
		t.Fatalf("Expected 2 blocked instances, got %v", config.Conf.BlockedInstances)
	}
	if config.Conf.BlockedInstances[0] != "spam.example" {
		t.Errorf("Expected lowercased 'spam.example', got '%s'", config.Conf.BlockedInstances[0])
	}
	if config.Conf.BlockedInstances[1] != "bad.example" {
		t.Errorf("Expected trimmed 'bad.example', got '%s'", config.Conf.BlockedInstances[1])
	}
}

func TestReadConfFederationFalseEnv(t *testing.T) {
	// Create a test config file
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
  withFederation: true
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	// Set env to false (anything but "true" should not enable it)
	os.Setenv("GLYPTODON_FEDERATION", "false")
	defer os.Unsetenv("GLYPTODON_FEDERATION")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Env is not "true", so it should use YAML value
	if !config.Conf.WithFederation {
		t.Error("Expected WithFederation to be true from YAML when env is not 'true'")
	}
}

func TestReadConfDownvotesEnv(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  sshPort: 23232
  httpPort: 9999
  sslDomain: example.com
  enableDownvotes: true
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	// Downvotes can be explicitly switched off via env
	os.Setenv("GLYPTODON_ENABLE_DOWNVOTES", "false")
	defer os.Unsetenv("GLYPTODON_ENABLE_DOWNVOTES")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.EnableDownvotes {
		t.Error("Expected EnableDownvotes to be false from env")
	}
}

func TestReadConfInvalidYaml(t *testing.T) {
	// Create an invalid YAML file
	invalidYaml := `
conf:
  host: 127.0.0.1
  sshPort: not_a_number
  invalid yaml structure
`
	err := os.WriteFile("config.yaml", []byte(invalidYaml), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	_, err = ReadConf()
	if err == nil {
		t.Error("Expected error when parsing invalid YAML")
	}
}

func TestSplitInstanceList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single domain",
			input:    "remote.example",
			expected: []string{"remote.example"},
		},
		{
			name:     "mixed case and whitespace",
			input:    " Remote.Example ,OTHER.example",
			expected: []string{"remote.example", "other.example"},
		},
		{
			name:     "empty segments dropped",
			input:    "a.example,,b.example,",
			expected: []string{"a.example", "b.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitInstanceList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d domains, got %v", len(tt.expected), result)
			}
			for i, d := range tt.expected {
				if result[i] != d {
					t.Errorf("Expected '%s' at %d, got '%s'", d, i, result[i])
				}
			}
		})
	}
}
