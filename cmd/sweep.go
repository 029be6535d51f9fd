package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/jinkaiteo/edms/internal/service"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd())
}

func sweepCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "sweep",
		Short: "promote documents whose effective or obsolescence date has arrived",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			effective, err := client.Sweeper.PromoteEffective(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}
			obsolete, err := client.Sweeper.PromoteObsolete(ctx)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Sweep", "Promoted", "Skipped", "Blocked", "Failed"})
			for _, row := range []struct {
				name   string
				result service.SweepResult
			}{
				{service.SweepEffective, effective},
				{service.SweepObsolescence, obsolete},
			} {
				table.Append([]string{
					row.name,
					strconv.Itoa(row.result.Promoted),
					strconv.Itoa(row.result.Skipped),
					strconv.Itoa(row.result.Blocked),
					strconv.Itoa(row.result.Failed),
				})
			}
			table.Render()
		},
	}

	return command
}
