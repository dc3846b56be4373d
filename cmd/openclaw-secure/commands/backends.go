package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/systmms/openclaw-secure/internal/config"
)

type backendStatus struct {
	name     string
	status   string
	selected bool
}

func NewBackendsCommand(cfg *config.Config) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List secret backends",
		Long: `List every supported backend. With --probe each one is created from the
preferences file and asked whether it is usable on this machine (CLI
installed and signed in, credentials present, vault reachable).

The selected backend is marked with *.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := listBackends(cmd.Context(), cfg, probe)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if probe {
				_, _ = fmt.Fprintf(w, "BACKEND\tSTATUS\n")
			} else {
				_, _ = fmt.Fprintf(w, "BACKEND\n")
			}
			for _, s := range statuses {
				name := s.name
				if s.selected {
					name += " *"
				}
				if probe {
					_, _ = fmt.Fprintf(w, "%s\t%s\n", name, s.status)
				} else {
					_, _ = fmt.Fprintf(w, "%s\n", name)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&probe, "probe", "p", false, "Check whether each backend is available")

	return cmd
}

// listBackends returns the registry's backends in name order. Probes run
// concurrently; each is bounded by the backend's own probe timeout.
func listBackends(ctx context.Context, cfg *config.Config, probe bool) []backendStatus {
	registry := newRegistry(cfg)
	names := registry.Names()
	selected := cfg.Backend()

	statuses := make([]backendStatus, len(names))
	var g errgroup.Group
	for i, name := range names {
		statuses[i] = backendStatus{name: name, selected: name == selected}
		if !probe {
			continue
		}
		g.Go(func() error {
			b, err := registry.Create(name, cfg.BackendOptions(name))
			switch {
			case err != nil:
				statuses[i].status = "not configured"
				cfg.Logger.Debug("%s: %v", name, err)
			case b.Available(ctx):
				statuses[i].status = "available"
			default:
				statuses[i].status = "unavailable"
			}
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}
