package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/bottlecrm/authd/internal/cliconfig"
	"github.com/bottlecrm/authd/pkg/client"
)

var (
	greenCheck = color.New(color.FgGreen).Sprint("✓")
	redCross   = color.New(color.FgRed).Sprint("✗")
	bold       = color.New(color.Bold).SprintFunc()
)

// BeQuietError signals that the error was already printed and the command
// should just exit non-zero.
type BeQuietError struct{}

func (BeQuietError) Error() string { return "" }

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s "+format, append([]any{greenCheck}, args...)...)
}

func logError(err error, correlationID, format string, args ...any) error {
	log.Error().Msgf("%s "+format, append([]any{redCross}, args...)...)
	if correlationID != "" {
		log.Error().Msgf("correlation ID: %s", correlationID)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func getServer() (string, error) {
	server := viper.GetString(ServerAddrKey)
	if server == "" {
		return "", fmt.Errorf("server address not configured, provide via --server or env")
	}
	return server, nil
}

func getClient() (*client.Client, error) {
	server, err := getServer()
	if err != nil {
		return nil, err
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		return nil, err
	}

	var authToken string

	credential, err := cfg.GetCredential(server)
	if err != nil {
		if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
			return nil, err
		}
	} else {
		if credential.Expired() {
			log.Warn().Msg("stored credential looks expired, run 'authd login' if requests fail")
		}
		authToken = credential.Token
	}

	return client.New(server, client.WithAuthToken(authToken)), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
