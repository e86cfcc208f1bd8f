package commands

import (
	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/ui"
)

const envReference = `# Configuration reference

A database target is a set of ` + "`<PREFIX>_*`" + ` environment variables.
Pick any prefix (for example ` + "`DB`" + `, ` + "`ISERIES`" + ` or ` + "`REDSHIFT`" + `)
and select it with ` + "`--prefix`" + ` or the ` + "`env_prefix`" + ` setting
in ` + "`.dataferry.yaml`" + `. A ` + "`.env`" + ` file in the working
directory is loaded first.

## Target variables

| Variable | Default | Meaning |
| --- | --- | --- |
| <PREFIX>_DRIVER | | postgres, mysql, sqlite3 or odbc |
| <PREFIX>_DSN | | raw data source name, overrides host fields |
| <PREFIX>_HOST | | database host |
| <PREFIX>_PORT | 0 | database port, 0 for the driver default |
| <PREFIX>_DATABASE | | database name |
| <PREFIX>_USERNAME | | login user |
| <PREFIX>_PASSWORD | | login password |
| <PREFIX>_SSL | false | enable TLS where the driver supports it |
| <PREFIX>_TIMEOUT | 30 | connection timeout, seconds |
| <PREFIX>_MAX_RETRIES | 3 | retries after the first failed attempt |
| <PREFIX>_RETRY_DELAY | 5 | pause between attempts, seconds |
| <PREFIX>_POOL_SIZE | 5 | maximum open connections |
| <PREFIX>_POOL_TIMEOUT | 30 | wait for a free connection, seconds |

## SSO variables

| Variable | Default | Meaning |
| --- | --- | --- |
| SSO_PROFILE | | profile to keep fresh |
| SSO_LOGIN_COMMAND | aws sso login --profile <profile> | refresh command |
| SSO_CACHE_PATH | ~/.dataferry/sso-cache.db | refresh timestamp cache |
| SSO_REFRESH_WINDOW | 21600 | seconds a login stays valid |
| SSO_MAX_RETRIES | 3 | login retries after the first failure |
| SSO_RETRY_DELAY | 5 | pause between login attempts, seconds |

## Telemetry

Set ` + "`DATAFERRY_TELEMETRY_DISABLED=1`" + ` or pass ` + "`--no-telemetry`" + `
to disable usage telemetry.
`

// NewEnvCommand creates the env command.
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the environment variable reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.PrintMarkdown(envReference)
		},
	}
}
