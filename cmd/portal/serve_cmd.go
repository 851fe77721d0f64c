package main

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openhouse/portalcache/config"
	"github.com/openhouse/portalcache/diagnostic"
	"github.com/openhouse/portalcache/qrtoken"
	"github.com/openhouse/portalcache/server"
	"github.com/openhouse/portalcache/sharedcache"
	"github.com/openhouse/portalcache/storage"
	"github.com/openhouse/portalcache/store"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal API",
		Long: `Run the portal API.

The database schema is created on start when it is missing. Expired QR
tokens are purged every hour at quarter past.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAPIConfig()
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.ListenPort
			}

			srv, st, err := buildServer(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if glog.V(2) {
				glog.Infof("Starting server on port %d", port)
			}
			return srv.ListenAndServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (defaults to listen_port)")
	return cmd
}

func loadAPIConfig() (config.API, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return config.API{}, err
	}
	if cfg.API.QRTokenSecret == "" {
		return config.API{}, fmt.Errorf("%s has no [%s] section", configPath, config.APISection)
	}
	return cfg.API, nil
}

func buildServer(cmd *cobra.Command, c config.API) (*server.Server, *store.Store, error) {
	if glog.V(2) {
		glog.Infof("Initialising %s database connection", c.DB.Driver)
	}
	st, err := store.Open(c.DB)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, nil, err
	}

	signer, err := qrtoken.NewSigner(c.QRTokenSecret, c.PortalURL)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	links, err := storage.New(c.S3)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	var catalog *diagnostic.Catalog
	if c.DiagnosticFlowsPath != "" {
		catalog, err = diagnostic.LoadCatalog(c.DiagnosticFlowsPath)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	if glog.V(2) && c.MemcachedHost != "" {
		glog.Infof("Initialising cache connection to %s:%d", c.MemcachedHost, c.MemcachedPort)
	}

	srv, err := server.New(server.Options{
		Store:           st,
		Signer:          signer,
		Links:           links,
		Shared:          sharedcache.New(c.MemcachedHost, c.MemcachedPort, "portal"),
		Catalog:         catalog,
		AllowDemoTokens: c.AllowDemoTokens,
		ListingTTL:      c.ListingTTL,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return srv, st, nil
}
