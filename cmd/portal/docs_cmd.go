package main

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openhouse/portalcache/documents"
)

func newDocsCmd() *cobra.Command {
	var (
		token    string
		search   string
		download string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "docs <unitUid>",
		Short: "List a unit's documents",
		Long: `List the documents of a unit, grouped by category.

The token is remembered in the session file, so it only has to be given
once. Without a token the unit UID itself is sent, which only demo
deployments accept.

With --watch the listing is printed again whenever it changes. Old
listings are shown at once and refreshed in the background.`,
		Example: `  portal docs LP-001 --token 'u-1:t-1:dev-1:LP-001:...'
  portal docs LP-001 --search warranty
  portal docs LP-001 --download 3f2a...
  portal docs LP-001 --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			unit := args[0]

			p, err := newPurchaser()
			if err != nil {
				return err
			}
			if token != "" {
				if err := p.session.SetToken(unit, token); err != nil {
					return fmt.Errorf("saving token: %w", err)
				}
			}

			out := cmd.OutOrStdout()

			switch {
			case download != "":
				u, err := p.docs.DownloadURL(ctx, unit, download)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, u)
				return nil

			case search != "":
				docs, err := p.docs.Search(ctx, unit, search)
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					fmt.Fprintf(out, "no documents match %q\n", search)
					return nil
				}
				for _, d := range docs {
					printDocument(out, d)
				}
				return nil
			}

			lk, err := p.docs.List(ctx, unit)
			if err != nil {
				return err
			}
			printListing(out, lk.Data)
			if !watch {
				return nil
			}

			go func() {
				if err := p.session.WatchFile(ctx, p.file); err != nil {
					glog.Warningf("not watching %s: %v", p.file.Path(), err)
				}
			}()

			interval := p.cfg.StaleAfter / 2
			if interval < time.Second {
				interval = time.Second
			}
			return watchListing(cmd, p, unit, interval, lk.Data)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "QR token for the unit")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only show documents whose title matches")
	cmd.Flags().StringVarP(&download, "download", "d", "", "print a download link for the document with this id")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing the listing as it changes")
	cmd.MarkFlagsMutuallyExclusive("search", "download", "watch")

	return cmd
}

// watchListing polls the cache until the command is interrupted, printing
// the listing each time a read returns something new.
func watchListing(cmd *cobra.Command, p *purchaser, unit string, interval time.Duration, last []documents.Document) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lk, err := p.docs.List(ctx, unit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			glog.Warningf("listing %s: %v", unit, err)
			continue
		}
		if sameListing(last, lk.Data) {
			continue
		}

		fmt.Fprintf(out, "\n--- %s ---\n", time.Now().Format("15:04:05"))
		printListing(out, lk.Data)
		last = lk.Data
	}
}

func sameListing(a, b []documents.Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Title != b[i].Title || a[i].FileURL != b[i].FileURL {
			return false
		}
	}
	return true
}

func printListing(out io.Writer, docs []documents.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(out, "no documents")
		return
	}

	if must := documents.MustRead(docs); len(must) > 0 {
		fmt.Fprintln(out, "Must read")
		for _, d := range must {
			printDocument(out, d)
		}
		fmt.Fprintln(out)
	}

	groups := documents.ByCategory(docs)
	for _, c := range documents.Categories {
		if len(groups[c]) == 0 {
			continue
		}
		fmt.Fprintln(out, c)
		for _, d := range groups[c] {
			printDocument(out, d)
		}
		fmt.Fprintln(out)
	}
}

func printDocument(out io.Writer, d documents.Document) {
	mark := " "
	if d.IsHouseSpecific {
		mark = "*"
	}
	fmt.Fprintf(out, "  %s %-48s %-6s %s\n", mark, d.Title, d.FileType, d.ID)
}
