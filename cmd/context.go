package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	contextDir      = "./.tmp"
	contextFileName = "edms"
)

// Actor overrides the saved context for one command.
var Actor string

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the acting user saved between commands.
type Context struct {
	User string `mapstructure:"user" json:"user"`
}

// saves the acting user to ./.tmp/edms.yml
func setContextCommand() *cobra.Command {
	var user string
	command := &cobra.Command{
		Use:   "set",
		Short: "set the acting user",
		Run: func(cmd *cobra.Command, args []string) {
			if user == "" {
				color.Red(`missing: --user`)
				return
			}

			if err := writeContext(Context{User: user}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&user, "user", "u", "", "user id")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			if ctx.User == "" {
				color.Yellow("no acting user, run: edms context set -u <user>")
				return
			}
			fmt.Printf("user: %s\n", ctx.User)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeContext(Context{}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context reset")
		},
	}

	return command
}

func contextViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(contextFileName)
	v.AddConfigPath(contextDir)
	v.SetConfigType("yml")
	return v
}

func contextFile() string {
	return contextDir + "/" + contextFileName + ".yml"
}

func writeContext(context Context) error {
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return err
	}

	v := contextViper()
	v.Set("context", context)
	return v.WriteConfigAs(contextFile())
}

func readContext() Context {
	var ctx Context

	if _, err := os.Stat(contextFile()); os.IsNotExist(err) {
		return ctx
	}

	v := contextViper()
	if err := v.ReadInConfig(); err != nil {
		fmt.Println("error reading config file: ", err)
		return ctx
	}

	if err := v.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}

	return ctx
}

func bindContextFlags(command *cobra.Command) {
	command.Flags().StringVar(&Actor, "as", "", "act as this user instead of the saved context")
}

// actingUser returns the --as flag or the saved context user. The scheduler
// identity is refused; only the sweep command acts as it.
func actingUser() (string, bool) {
	user := Actor
	if user == "" {
		user = readContext().User
	}
	if user == "" {
		color.Red("missing: acting user, run: edms context set -u <user> or pass --as")
		return "", false
	}
	if user == identity.SchedulerActor {
		color.Red("%s is reserved for scheduled sweeps, run: edms sweep", user)
		return "", false
	}
	return user, true
}
