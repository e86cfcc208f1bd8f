package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/config"
	"github.com/dataferry/connector/cli/internal/ui"
)

const openAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Set up a database target interactively",
		Long:  "Prompt for connection details and write them to a .env file",
		RunE:  runInit,
	}
}

type initAnswers struct {
	Prefix   string
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func runInit(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("dataferry", "database target setup")

	questions := []*survey.Question{
		{
			Name: "prefix",
			Prompt: &survey.Input{
				Message: "Environment prefix for this target:",
				Default: "DB",
				Help:    "Variables are written as <PREFIX>_HOST, <PREFIX>_DATABASE and so on",
			},
			Validate: survey.Required,
		},
		{
			Name: "driver",
			Prompt: &survey.Select{
				Message: "Database driver:",
				Options: []string{"postgres", "redshift", "mysql", "sqlite3", "odbc"},
				Default: "postgres",
			},
		},
		{
			Name:     "host",
			Prompt:   &survey.Input{Message: "Host:", Default: "localhost"},
			Validate: survey.Required,
		},
		{
			Name:   "port",
			Prompt: &survey.Input{Message: "Port (0 for driver default):", Default: "0"},
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database name:"},
			Validate: survey.Required,
		},
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.Required,
		},
	}

	var answers initAnswers
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	answers.Prefix = strings.ToUpper(strings.TrimSpace(answers.Prefix))

	if exists, _ := afero.Exists(config.AppFs, ".env"); exists {
		overwrite := false
		prompt := &survey.Confirm{Message: ".env already exists, append to it?", Default: true}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			ui.PrintWarning("Aborted, .env left untouched")
			return nil
		}
	}

	if err := writeEnvFile(answers); err != nil {
		return fmt.Errorf("failed to write .env: %w", err)
	}
	ui.PrintSuccess("Wrote connection settings for %s to .env", answers.Prefix)

	cliCfg, err := config.LoadConfig()
	if err == nil {
		cliCfg.EnvPrefix = answers.Prefix
		if err := config.SaveConfig(cliCfg); err == nil {
			ui.PrintSuccess("Saved %s as the default target", answers.Prefix)
		}
	}

	ui.PrintInfo("Try it: dataferry fetch \"SELECT 1\"")
	return nil
}

func writeEnvFile(a initAnswers) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n# %s target, written by dataferry init\n", a.Prefix)
	fmt.Fprintf(&b, "%s_DRIVER=%s\n", a.Prefix, a.Driver)
	fmt.Fprintf(&b, "%s_HOST=%s\n", a.Prefix, a.Host)
	if a.Port > 0 {
		fmt.Fprintf(&b, "%s_PORT=%d\n", a.Prefix, a.Port)
	}
	fmt.Fprintf(&b, "%s_DATABASE=%s\n", a.Prefix, a.Database)
	fmt.Fprintf(&b, "%s_USERNAME=%s\n", a.Prefix, a.Username)
	fmt.Fprintf(&b, "%s_PASSWORD=%s\n", a.Prefix, a.Password)

	f, err := config.AppFs.OpenFile(".env", openAppendFlags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
