package activitypub

import (
	"strings"
	"testing"

	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Host = "localhost"
	conf.Conf.SslDomain = "pangea.example"
	conf.Conf.WithFederation = true
	return conf
}

func TestPersonURI(t *testing.T) {
	uri := PersonURI(testConf(), "alice")
	if uri != "https://pangea.example/@alice" {
		t.Errorf("Expected 'https://pangea.example/@alice', got '%s'", uri)
	}
}

func TestBoardURIs(t *testing.T) {
	conf := testConf()
	if uri := BoardURI(conf, "gardening"); uri != "https://pangea.example/+gardening" {
		t.Errorf("Expected board URI, got '%s'", uri)
	}
	if uri := BoardInboxURI(conf, "gardening"); uri != "https://pangea.example/+gardening/inbox" {
		t.Errorf("Expected board inbox URI, got '%s'", uri)
	}
	if uri := BoardFollowersURI(conf, "gardening"); uri != "https://pangea.example/+gardening/followers" {
		t.Errorf("Expected board followers URI, got '%s'", uri)
	}
	if uri := BoardModeratorsURI(conf, "gardening"); uri != "https://pangea.example/+gardening/moderators" {
		t.Errorf("Expected board moderators URI, got '%s'", uri)
	}
	if uri := SharedInboxURI(conf); uri != "https://pangea.example/inbox" {
		t.Errorf("Expected shared inbox URI, got '%s'", uri)
	}
}

func TestNewActivityID(t *testing.T) {
	id := NewActivityID(testConf(), KindCreate)
	if !strings.HasPrefix(id, "https://pangea.example/activities/create/") {
		t.Errorf("Expected lowercase kind segment in activity id, got '%s'", id)
	}

	suffix := strings.TrimPrefix(id, "https://pangea.example/activities/create/")
	if _, err := uuid.Parse(suffix); err != nil {
		t.Errorf("Expected uuid suffix in activity id, got '%s'", suffix)
	}
}

func TestKeyID(t *testing.T) {
	keyId := KeyID("https://pangea.example/@alice")
	if keyId != "https://pangea.example/@alice#main-key" {
		t.Errorf("Expected key id fragment, got '%s'", keyId)
	}
}

func TestExtractDomain(t *testing.T) {
	d, err := ExtractDomain("https://Pangea.Example/@alice")
	if err != nil {
		t.Fatalf("ExtractDomain failed: %v", err)
	}
	if d != "pangea.example" {
		t.Errorf("Expected lowercased domain, got '%s'", d)
	}

	if _, err := ExtractDomain("not a uri"); err == nil {
		t.Error("Expected error for URI without host")
	}
}

func TestIsLocalURI(t *testing.T) {
	conf := testConf()
	if !IsLocalURI(conf, "https://pangea.example/post/123") {
		t.Error("Expected local URI to be recognized")
	}
	if IsLocalURI(conf, "https://other.example/post/123") {
		t.Error("Expected foreign URI to be rejected")
	}
}

func TestLocalUsernameFromURI(t *testing.T) {
	conf := testConf()
	if name := LocalUsernameFromURI(conf, "https://pangea.example/@alice"); name != "alice" {
		t.Errorf("Expected 'alice', got '%s'", name)
	}
	if name := LocalUsernameFromURI(conf, "https://pangea.example/@alice/inbox"); name != "alice" {
		t.Errorf("Expected path suffix to be stripped, got '%s'", name)
	}
	if name := LocalUsernameFromURI(conf, "https://other.example/@alice"); name != "" {
		t.Errorf("Expected empty name for foreign URI, got '%s'", name)
	}
	if name := LocalUsernameFromURI(conf, "https://pangea.example/+gardening"); name != "" {
		t.Errorf("Expected empty name for board URI, got '%s'", name)
	}
}

func TestLocalBoardNameFromURI(t *testing.T) {
	conf := testConf()
	if name := LocalBoardNameFromURI(conf, "https://pangea.example/+gardening"); name != "gardening" {
		t.Errorf("Expected 'gardening', got '%s'", name)
	}
	if name := LocalBoardNameFromURI(conf, "https://pangea.example/+gardening/followers"); name != "gardening" {
		t.Errorf("Expected path suffix to be stripped, got '%s'", name)
	}
	if name := LocalBoardNameFromURI(conf, "https://pangea.example/@alice"); name != "" {
		t.Errorf("Expected empty name for person URI, got '%s'", name)
	}
}
