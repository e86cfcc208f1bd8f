package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/internal/debug"
	"github.com/dataferry/connector/sso"
)

// NewSSOCommand creates the sso command group.
func NewSSOCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sso",
		Short: "Manage single-sign-on credentials",
	}
	cmd.AddCommand(newSSORefreshCommand())
	cmd.AddCommand(newSSOStatusCommand())
	return cmd
}

func newSSORefreshCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh credentials if the refresh window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newSSOProvider()
			if err != nil {
				return err
			}
			defer p.Close()

			if force {
				if err := p.Refresh(cmd.Context()); err != nil {
					return err
				}
				ui.PrintSuccess("Credentials refreshed")
				return nil
			}

			refreshed, err := p.EnsureFresh(cmd.Context())
			if err != nil {
				return err
			}
			if refreshed {
				ui.PrintSuccess("Credentials refreshed")
			} else {
				ui.PrintInfo("Credentials still fresh, nothing to do")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh even when the window has not passed")
	return cmd
}

func newSSOStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when credentials were last refreshed",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newSSOProvider()
			if err != nil {
				return err
			}
			defer p.Close()

			last, ok, err := p.LastRefresh(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				ui.PrintWarning("No refresh recorded yet")
				return nil
			}

			ui.PrintInfo("Last refresh: %s (%s ago)",
				last.Format(time.RFC3339), time.Since(last).Round(time.Second))
			needs, err := p.NeedsRefresh(cmd.Context())
			if err != nil {
				return err
			}
			if needs {
				ui.PrintWarning("Refresh window has passed, run: dataferry sso refresh")
			} else {
				ui.PrintSuccess("Credentials are fresh")
			}
			return nil
		},
	}
}

func newSSOProvider() (*sso.Provider, error) {
	cfg, err := sso.FromEnv()
	if err != nil {
		return nil, err
	}
	return sso.New(cfg, sso.WithLogger(debug.Logger()))
}
