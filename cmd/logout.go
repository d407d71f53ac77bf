package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bottlecrm/authd/internal/cliconfig"
)

var logoutAll bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored credential",
	Long: `Revokes the locally stored credential on the server and removes it
from the local config. With --all, every credential of the subject is
revoked, logging out all devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := getServer()
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		if logoutAll {
			result, correlationID, err := cli.RevokeAll(cmd.Context())
			if err != nil {
				return logError(err, correlationID, "failed to revoke credentials")
			}
			logSuccess("revoked %d credential(s)", result.RevokedCount)
		} else {
			correlationID, err := cli.Logout(cmd.Context())
			if err != nil {
				return logError(err, correlationID, "failed to log out")
			}
			logSuccess("logged out")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			// nothing stored locally, server-side revocation already done
			return nil
		}
		if err := cfg.DeleteCredential(server); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return fmt.Errorf("removing stored credential: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Revoke every credential of the subject")
}
