package util

import (
	"strings"
	"testing"
)

func TestPkToHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "simple string",
			input: "test",
		},
		{
			name:  "empty string",
			input: "",
		},
		{
			name:  "ssh key format",
			input: "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PkToHash(tt.input)
			// Just verify it returns a 64-character hex string
			if len(result) != 64 {
				t.Errorf("Expected hash length 64, got %d", len(result))
			}
			// Verify it's consistent
			result2 := PkToHash(tt.input)
			if result != result2 {
				t.Errorf("Hash should be consistent: %s != %s", result, result2)
			}
		})
	}
}

func TestPkToHashDifferentInputs(t *testing.T) {
	hash1 := PkToHash("input1")
	hash2 := PkToHash("input2")

	if hash1 == hash2 {
		t.Error("Different inputs should produce different hashes")
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()

	if !strings.HasPrefix(result, "glyptodon / ") {
		t.Errorf("Expected 'glyptodon / <version>', got '%s'", result)
	}
	if strings.TrimPrefix(result, "glyptodon / ") == "" {
		t.Error("Expected a non-empty version")
	}
}

func TestRandomString(t *testing.T) {
	tests := []int{10, 20, 32, 64}

	for _, length := range tests {
		result := RandomString(length)
		if len(result) != length {
			t.Errorf("Expected length %d, got %d", length, len(result))
		}
	}
}

func TestRandomStringUniqueness(t *testing.T) {
	// Generate multiple random strings and verify they're different
	results := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := RandomString(32)
		if results[s] {
			t.Errorf("RandomString produced duplicate: %s", s)
		}
		results[s] = true
	}
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "newlines replaced",
			input:    "line1\nline2\nline3",
			expected: "line1 line2 line3",
		},
		{
			name:     "html escaped",
			input:    "<script>alert('xss')</script>",
			expected: "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:     "combined newlines and html",
			input:    "<div>\ntest\n</div>",
			expected: "&lt;div&gt; test &lt;/div&gt;",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "normal text",
			input:    "Hello World",
			expected: "Hello World",
		},
		{
			name:     "ampersand",
			input:    "Tom & Jerry",
			expected: "Tom &amp; Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeInput(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	pair := GeneratePemKeypair()

	if !strings.Contains(pair.Private, "RSA PRIVATE KEY") {
		t.Error("Expected a PEM-encoded private key")
	}
	if !strings.Contains(pair.Public, "RSA PUBLIC KEY") {
		t.Error("Expected a PEM-encoded public key")
	}
	if pair.Private == pair.Public {
		t.Error("Private and public halves must differ")
	}
}
