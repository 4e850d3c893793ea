// Command diag inspects a route file offline: single interpolations, whole
// timelines and the impact statistics, printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/stats"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	routesPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "diag",
		Short:         "Inspect ship routes without running the server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.routesPath, "routes", "r", "configs/routes.yaml", "route file (yaml or json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newInterpolateCmd(opts),
		newTimelineCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

func (o *options) logger() *slog.Logger {
	var w io.Writer = io.Discard
	if o.verbose {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

// load reads the route file into a fresh store.
func (o *options) load() (*route.Store, *route.RouteSet, error) {
	store := route.NewStore()
	rs, err := route.NewLoader(o.routesPath, store, o.logger()).Load()
	if err != nil {
		return nil, nil, err
	}
	return store, rs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInterpolateCmd(opts *options) *cobra.Command {
	var t float64
	cmd := &cobra.Command{
		Use:   "interpolate <route>",
		Short: "Print one route's position and heading at progress t",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rs, err := opts.load()
			if err != nil {
				return err
			}
			r, ok := rs.Find(args[0])
			if !ok {
				return fmt.Errorf("route %q not found in %s", args[0], opts.routesPath)
			}
			return printJSON(cmd.OutOrStdout(), fleet.ShipPosition{
				Route:    r.Name,
				Vessel:   r.Vessel,
				Position: route.Interpolate(r, t),
			})
		},
	}
	cmd.Flags().Float64VarP(&t, "t", "t", 0, "voyage progress in [0, 100]")
	return cmd
}

func newTimelineCmd(opts *options) *cobra.Command {
	var from, to, step float64
	var workers int
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print every ship's position from --from to --to",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.load()
			if err != nil {
				return err
			}
			pos := fleet.NewPositioner(store, fleet.Config{Workers: workers}, opts.logger())
			frames, err := pos.GenerateFrames(context.Background(), from, to, step)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range frames {
				fmt.Fprintf(out, "t=%6.2f\n", f.SimTime)
				for _, s := range f.Ships {
					fmt.Fprintf(out, "  %-20s lat=%9.4f lon=%10.4f hdg=%7.2f\n",
						s.Route, s.Latitude, s.Longitude, s.HeadingDegrees)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&from, "from", route.ProgressStart, "first progress value")
	cmd.Flags().Float64Var(&to, "to", route.ProgressEnd, "last progress value")
	cmd.Flags().Float64Var(&step, "step", 10, "progress step")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "worker pool size")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the diversion impact statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rs, err := opts.load()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats.FromSet(rs))
		},
	}
}
