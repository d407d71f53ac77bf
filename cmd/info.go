package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show remote server information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		info, correlationID, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlationID, "failed to fetch server info")
		}

		log.Info().Msgf("service: %s", bold(info.Service))
		log.Info().Msgf("version: %s (commit: %s)", info.Version, info.CommitHash)
		log.Info().Msgf("about:   %s", info.About)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
