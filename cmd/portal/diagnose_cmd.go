package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openhouse/portalcache/diagnostic"
	"github.com/openhouse/portalcache/outbox"
)

func newDiagnoseCmd() *cobra.Command {
	var (
		flowsPath string
		unit      string
		list      bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose [flowId]",
		Short: "Walk through a diagnostic flow",
		Long: `Walk through a diagnostic flow, answering its questions on the
terminal.

Flows are read from the portal API unless --flows names a local file. The
outcome is reported to the portal API when the flow finishes.`,
		Example: `  portal diagnose --list
  portal diagnose no-heat --unit LP-001`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			var catalog *diagnostic.Catalog
			if flowsPath != "" {
				catalog, err = diagnostic.LoadCatalog(flowsPath)
			} else {
				catalog, err = diagnostic.FetchCatalog(ctx, cfg.Client.APIBaseURL, nil)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if list || len(args) == 0 {
				for _, f := range catalog.Flows {
					fmt.Fprintf(out, "%-20s %s\n", f.ID, f.Name)
				}
				return nil
			}

			flow, err := catalog.Flow(args[0])
			if err != nil {
				return err
			}

			queue := outbox.NewQueue[diagnostic.Report](diagnostic.NewHTTPSink(cfg.Client.APIBaseURL, nil), outbox.DefaultBuffer)
			w := diagnostic.NewWalker(flow, unit, queue)

			err = walk(ctx, w, cmd.InOrStdin(), out)

			// Close waits for the report to be delivered.
			queue.Close()
			if queue.Failed() > 0 {
				fmt.Fprintln(out, "the outcome could not be reported to the portal")
			}

			if errors.Is(err, errQuit) {
				fmt.Fprintln(out, "\nleft the flow")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&flowsPath, "flows", "f", "", "read flows from this TOML file")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "unit UID the report is filed against")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the available flows")

	return cmd
}

var errQuit = errors.New("left the flow")

// walk runs w to the end, reading one answer per line from in.
func walk(ctx context.Context, w *diagnostic.Walker, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)

	fmt.Fprintf(out, "%s\n\n", w.Flow().Name)

	for !w.Done() {
		s := w.Current()
		n, total := w.Position()

		fmt.Fprintf(out, "[%d/%d] %s\n", n, total, s.Title)
		if s.Body != "" {
			fmt.Fprintf(out, "%s\n", s.Body)
		}

		switch s.Type {
		case diagnostic.YesNo:
			fmt.Fprint(out, "(y)es, (n)o, (b)ack: ")
		case diagnostic.MultipleChoice:
			for i, o := range s.Options {
				fmt.Fprintf(out, "  %d) %s\n", i+1, o.Label)
			}
			fmt.Fprint(out, "number, (b)ack: ")
		case diagnostic.Escalate:
			fmt.Fprint(out, "press enter to contact customer care, (b)ack: ")
		default:
			fmt.Fprint(out, "press enter to continue, (b)ack: ")
		}

		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return err
			}
			return errQuit
		}
		answer := strings.ToLower(strings.TrimSpace(lines.Text()))

		if answer == "b" || answer == "back" {
			if !w.Back() {
				return errQuit
			}
			fmt.Fprintln(out)
			continue
		}

		var err error
		switch s.Type {
		case diagnostic.YesNo:
			switch answer {
			case "y", "yes":
				err = w.Yes(ctx)
			case "n", "no":
				err = w.No(ctx)
			default:
				fmt.Fprintln(out, "please answer y or n")
				continue
			}
		case diagnostic.MultipleChoice:
			i, convErr := strconv.Atoi(answer)
			if convErr != nil {
				fmt.Fprintln(out, "please pick a number")
				continue
			}
			err = w.Choose(ctx, i-1)
			if errors.Is(err, diagnostic.ErrNoSuchOption) {
				fmt.Fprintln(out, "no such option")
				continue
			}
		case diagnostic.Escalate:
			err = w.Escalate(ctx)
		default:
			err = w.Continue(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	switch w.Outcome() {
	case diagnostic.Resolved:
		fmt.Fprintln(out, "Glad that sorted it.")
	case diagnostic.Escalated:
		fmt.Fprintln(out, "Customer care will be in touch.")
	}
	return nil
}
