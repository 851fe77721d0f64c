package main

import (
	"os"
	"path/filepath"

	"github.com/openhouse/portalcache/config"
	"github.com/openhouse/portalcache/documents"
	"github.com/openhouse/portalcache/engine"
	"github.com/openhouse/portalcache/expiration"
	"github.com/openhouse/portalcache/refresh"
	"github.com/openhouse/portalcache/session"
)

// purchaser is the client side wiring shared by the purchaser commands.
type purchaser struct {
	cfg     config.Client
	file    *session.FileStore
	session *session.Session
	docs    *documents.Service
}

// sessionPath is where tokens are kept between runs when the config file
// does not say.
func sessionPath(c config.Client) string {
	if c.SessionFile != "" {
		return c.SessionFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "openhouse", "sessions.json")
}

func newPurchaser() (*purchaser, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	c := cfg.Client

	file := session.NewFileStore(sessionPath(c))
	sess := session.New(session.Chain{file, session.NewMemoryStore()})

	eng := engine.NewCacheEngine(
		expiration.NewFixedAge(c.StaleAfter),
		refresh.NewBackoff(c.RefreshAttempts, 0, 0),
		nil,
	)

	return &purchaser{
		cfg:     c,
		file:    file,
		session: sess,
		docs:    documents.NewService(sess, documents.NewClient(c.APIBaseURL, nil), eng, c.FetchTimeout),
	}, nil
}
