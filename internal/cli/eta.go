package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mini-ttc/etaboard/internal/eta"
	"github.com/mini-ttc/etaboard/internal/query"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

func NewEtaCmd(app *EtaCtlApp) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "eta <line> <stopNum>",
		Short: "Fetch and print the board for one stop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseStopArgs(args)
			if err != nil {
				return err
			}

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			client := ttc.NewClient(cfg.SubwayURL, cfg.BusURL, cfg.FetchTimeout, cfg.FetchMaxElapsed)
			engine := eta.NewEngine(
				client,
				query.NewClient(query.Options{Size: 16, TTL: time.Minute}),
				eta.NewRegistry(16, time.Now),
				nil,
			)

			board, err := engine.View(cmd.Context(), q, eta.ViewOptions{Wait: true})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(board)
			}
			fmt.Fprint(out, formatBoard(board))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full board as JSON")

	return cmd
}

func NewSourceCmd(app *EtaCtlApp) *cobra.Command {
	return &cobra.Command{
		Use:   "source <line>",
		Short: "Print which prediction source serves a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := strconv.Atoi(args[0])
			if err != nil || line <= 0 {
				return fmt.Errorf("line must be a positive integer: %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), eta.SelectSource(line))
			return nil
		},
	}
}

func parseStopArgs(args []string) (eta.StopQuery, error) {
	line, err := strconv.Atoi(args[0])
	if err != nil {
		return eta.StopQuery{}, fmt.Errorf("line must be an integer: %q", args[0])
	}
	stopNum, err := strconv.Atoi(args[1])
	if err != nil {
		return eta.StopQuery{}, fmt.Errorf("stopNum must be an integer: %q", args[1])
	}
	q := eta.StopQuery{Line: line, StopNum: stopNum}
	return q, q.Validate()
}

func formatBoard(b eta.Board) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s line %d stop %d (%s)\n", b.State, b.Query.Line, b.Query.StopNum, b.Source)
	for _, t := range b.Titles {
		fmt.Fprintf(&sb, "  %s\n", t)
	}
	if b.Message != "" {
		fmt.Fprintf(&sb, "  %s\n", b.Message)
	}
	for _, c := range b.ETA {
		if !c.Valid {
			sb.WriteString("  --\n")
			continue
		}
		fmt.Fprintf(&sb, "  %d min\n", c.Seconds/60)
	}
	if b.FetchError != "" {
		fmt.Fprintf(&sb, "  error: %s\n", b.FetchError)
	}
	return sb.String()
}
