package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "dependency commands",
}

func init() {
	rootCmd.AddCommand(depCmd)
	depCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	depCmd.AddCommand(linkDepCmd())
	depCmd.AddCommand(unlinkDepCmd())
	depCmd.AddCommand(listDepCmd())
}

func linkDepCmd() *cobra.Command {
	var sourceID string
	var targetID string
	var critical bool

	var required = []string{"source", "target"}

	command := &cobra.Command{
		Use:     "link",
		Short:   "record that the source document depends on the target",
		Example: "edms dep link -s <source-id> -t <target-id> --critical",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			actor, ok := actingUser()
			if !ok {
				return
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			edge, err := client.Dependencies.Link(ctx, actor, sourceID, targetID, critical)
			if err != nil {
				printError(err)
				return
			}
			fmt.Printf("linked %s -> %s (%s)\n", edge.SourceID, edge.TargetID, edge.ID)
		},
	}

	command.Flags().StringVarP(&sourceID, "source", "s", "", "dependent document id (required)")
	command.Flags().StringVarP(&targetID, "target", "t", "", "document depended on (required)")
	command.Flags().BoolVar(&critical, "critical", false, "mark the dependency critical")
	bindContextFlags(command)

	return command
}

func unlinkDepCmd() *cobra.Command {
	var sourceID string
	var targetID string

	var required = []string{"source", "target"}

	command := &cobra.Command{
		Use:     "unlink",
		Short:   "deactivate a dependency",
		Example: "edms dep unlink -s <source-id> -t <target-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			actor, ok := actingUser()
			if !ok {
				return
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			if err := client.Dependencies.Deactivate(ctx, actor, sourceID, targetID); err != nil {
				printError(err)
				return
			}
			fmt.Printf("unlinked %s -> %s\n", sourceID, targetID)
		},
	}

	command.Flags().StringVarP(&sourceID, "source", "s", "", "dependent document id (required)")
	command.Flags().StringVarP(&targetID, "target", "t", "", "document depended on (required)")
	bindContextFlags(command)

	return command
}

func listDepCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list what a document depends on and what depends on it",
		Example: "edms dep list -d <doc-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			edges, err := client.Dependencies.Dependencies(ctx, docID)
			if err != nil {
				printError(err)
				return
			}

			fmt.Println("depends on:")
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Target", "Active", "Critical", "Created By"})
			for _, e := range edges {
				table.Append([]string{e.TargetID, strconv.FormatBool(e.Active), strconv.FormatBool(e.Critical), e.CreatedBy})
			}
			table.Render()

			dependents, err := client.Dependencies.ActiveDependents(ctx, docID)
			if err != nil {
				printError(err)
				return
			}

			fmt.Println("active dependents:")
			table = tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Dependent", "Family", "Version", "Status", "Critical"})
			for _, d := range dependents {
				table.Append([]string{d.DocumentID, d.FamilyNumber, d.Version, string(d.Status), strconv.FormatBool(d.Critical)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")

	return command
}
