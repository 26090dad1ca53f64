package app

import (
	"net/http"
	"time"

	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/util"
)

// Context carries the process-wide collaborators: configuration, the
// database handle and the outbound HTTP client. It is built once in main,
// immutable afterwards, and passed by reference into every component.
// Tests construct their own contexts over in-memory databases.
type Context struct {
	Conf   *util.AppConfig
	DB     *db.DB
	Client *http.Client
}

// NewContext builds the application context. The client timeout bounds
// every remote fetch and inbox delivery so one unreachable instance
// cannot stall a fan-out.
func NewContext(conf *util.AppConfig, database *db.DB) *Context {
	return &Context{
		Conf: conf,
		DB:   database,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
