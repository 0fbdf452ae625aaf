// Package cli implements the footprint command-line client.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/client"
)

const defaultAPIURL = "http://localhost:8080"

type app struct {
	apiURL string
	token  string
	output string

	now    func() time.Time
	client *client.Client
}

// NewRootCommand builds the footprint command tree.
func NewRootCommand() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:   "footprint",
		Short: "Track carbon footprint activities from the terminal",
		Long: `footprint records the activities behind your carbon footprint and
manages them on a footprint API server.

Get started:
  footprint token --subject me    Mint a development token
  footprint add Electricity 200   Record 200 kWh of electricity
  footprint ls                    List your activities`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.output != outputTable && a.output != outputJSON {
				return fmt.Errorf("unknown output format %q (want table or json)", a.output)
			}
			a.client = client.NewClient(a.apiURL, a.token)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api-url", envOr("FOOTPRINT_API_URL", defaultAPIURL), "Footprint API base URL")
	root.PersistentFlags().StringVar(&a.token, "token", os.Getenv("FOOTPRINT_TOKEN"), "Bearer token (default: $FOOTPRINT_TOKEN)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "Output format: table, json")

	root.AddCommand(
		a.newListCommand(),
		a.newAddCommand(),
		a.newEditCommand(),
		a.newRemoveCommand(),
		newTokenCommand(),
		newTypesCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func (a *app) requireAuth() error {
	if a.token == "" {
		return errors.New(`not authenticated: pass --token or set FOOTPRINT_TOKEN (see "footprint token")`)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
