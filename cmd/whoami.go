package cmd

import (
	"errors"
	"os"

	"github.com/bottlecrm/authd/pkg/client"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the subject behind the stored credential",
	Long: `Fetches the authenticated subject from the server and lists its
organization memberships.

This command requires a stored credential (via 'authd login').`,
	Example: `  authd whoami`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching subject...")
		subject, correlationID, err := cli.Me(cmd.Context())
		if errors.Is(err, client.ErrCredentialRejected) {
			return logError(err, correlationID, "stored credential was rejected, run 'authd login' again")
		}
		if err != nil {
			return logError(err, correlationID, "failed to fetch subject")
		}

		logSuccess("logged in as %s <%s>", bold(subject.Name), subject.Email)

		if len(subject.Memberships) == 0 {
			log.Info().Msg("No organization memberships")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Organization", "ID", "Role"})

		faint := color.New(color.Faint).SprintFunc()
		for _, m := range subject.Memberships {
			t.AppendRow(table.Row{
				bold(m.Organization.Name),
				faint(truncate(m.OrganizationID, 36)),
				m.Role,
			})
		}

		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
