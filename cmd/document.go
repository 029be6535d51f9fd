package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/service"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "document commands",
}

func init() {
	rootCmd.AddCommand(docCmd)
	docCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	docCmd.AddCommand(createDocCmd())
	docCmd.AddCommand(getDocCmd())
	docCmd.AddCommand(listDocCmd())
	docCmd.AddCommand(familyDocCmd())
	docCmd.AddCommand(historyDocCmd())
}

func createDocCmd() *cobra.Command {
	var docType string
	var title string

	var required = []string{"type", "title"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a document",
		Long:    `create version 01.00 of a new document family in DRAFT`,
		Example: `edms doc create -t SOP --title "Line clearance"`,
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

			doc, err := client.Documents.CreateDocument(ctx, actor, service.CreateDocumentRequest{
				DocumentType: strings.ToUpper(docType),
				Title:        title,
			})
			if err != nil {
				printError(err)
				return
			}

			printDocuments(doc)
		},
	}

	command.Flags().StringVarP(&docType, "type", "t", "", "document type, e.g. SOP (required)")
	command.Flags().StringVar(&title, "title", "", "document title (required)")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func getDocCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a document",
		Example: "edms doc get -d <doc-id>",
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

			doc, err := client.Documents.GetDocument(ctx, docID)
			if err != nil {
				printError(err)
				return
			}

			printDocuments(doc)
			printDocumentDetail(doc)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")

	return command
}

func listDocCmd() *cobra.Command {
	var docType string
	var author string
	var statuses []string
	var page int
	var limit int

	command := &cobra.Command{
		Use:     "list",
		Short:   "list documents",
		Example: "edms doc list -t SOP -s EFFECTIVE -s APPROVED",
		Run: func(cmd *cobra.Command, args []string) {
			filter := store.DocumentFilter{
				DocumentType: strings.ToUpper(docType),
				Author:       author,
				Offset:       page * limit,
				Limit:        limit,
			}
			for _, s := range statuses {
				status := model.Status(strings.ToUpper(s))
				if !status.IsValid() {
					color.Red("unknown status: %s", s)
					return
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			docs, total, err := client.Documents.ListDocuments(ctx, filter)
			if err != nil {
				printError(err)
				return
			}

			printDocuments(docs...)
			fmt.Printf("showing %d of %d\n", len(docs), total)
		},
	}

	command.Flags().StringVarP(&docType, "type", "t", "", "document type")
	command.Flags().StringVarP(&author, "author", "a", "", "author id")
	command.Flags().StringSliceVarP(&statuses, "status", "s", nil, "status, repeatable")
	command.Flags().IntVarP(&page, "page", "p", 0, "page number")
	command.Flags().IntVarP(&limit, "limit", "l", 20, "page size")

	command.Flags().SortFlags = false

	return command
}

func familyDocCmd() *cobra.Command {
	var family string

	var required = []string{"family"}

	command := &cobra.Command{
		Use:     "family",
		Short:   "list every version of a document family",
		Example: "edms doc family -f SOP-2025-0001",
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

			docs, err := client.Documents.ListFamily(ctx, family)
			if err != nil {
				printError(err)
				return
			}
			printDocuments(docs...)

			current, err := client.Documents.Authoritative(ctx, family)
			switch {
			case errors.Is(err, service.ErrNoEffectiveVersion):
				color.Yellow("no effective version")
			case err != nil:
				printError(err)
			default:
				color.Green("authoritative: %s (%s)", current.Version(), current.ID)
			}
		},
	}

	command.Flags().StringVarP(&family, "family", "f", "", "family number (required)")

	return command
}

func historyDocCmd() *cobra.Command {
	var docID string
	var family string

	command := &cobra.Command{
		Use:     "history",
		Short:   "show the transition history of a document or family",
		Example: "edms doc history -d <doc-id>\nedms doc history -f SOP-2025-0001",
		Run: func(cmd *cobra.Command, args []string) {
			if docID == "" && family == "" {
				color.Red("missing: --doc-id or --family")
				return
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			var records []*model.TransitionRecord
			var err error
			if docID != "" {
				records, err = client.Documents.History(ctx, docID)
			} else {
				records, err = client.Documents.FamilyHistory(ctx, family)
			}
			if err != nil {
				printError(err)
				return
			}

			printRecords(records...)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id")
	command.Flags().StringVarP(&family, "family", "f", "", "family number")

	return command
}

func printDocuments(docs ...*model.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Family", "Version", "Status", "Title", "Author", "Revision"})
	for _, doc := range docs {
		table.Append([]string{
			doc.ID,
			doc.FamilyNumber,
			doc.Version().String(),
			doc.Status.String(),
			doc.Title,
			doc.Author,
			strconv.FormatInt(doc.Revision, 10),
		})
	}
	table.Render()
}

func printDocumentDetail(doc *model.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"reviewer", deref(doc.Reviewer)})
	table.Append([]string{"approver", deref(doc.Approver)})
	table.Append([]string{"effective date", formatDate(doc.EffectiveDate)})
	table.Append([]string{"obsolescence date", formatDate(doc.ObsolescenceDate)})
	if doc.ObsolescenceReason != "" {
		table.Append([]string{"obsolescence reason", doc.ObsolescenceReason})
	}
	if doc.ReasonForChange != "" {
		table.Append([]string{"reason for change", doc.ReasonForChange})
		table.Append([]string{"change summary", doc.ChangeSummary})
	}
	table.Render()
}

func printRecords(records ...*model.TransitionRecord) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Document", "Version", "Action", "From", "To", "Actor", "Comment"})
	for _, r := range records {
		table.Append([]string{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.DocumentID,
			r.Version,
			r.Action,
			string(r.FromStatus),
			string(r.ToStatus),
			r.Actor,
			r.Comment,
		})
	}
	table.Render()
}

// printError shows a refused operation with its blocking dependents, or logs
// any other error.
func printError(err error) {
	var werr *service.WorkflowError
	if !errors.As(err, &werr) {
		logrus.Error(err)
		return
	}

	color.Red("%s refused: %s", werr.Op, werr.Kind)
	if werr.Message != "" {
		fmt.Println(werr.Message)
	}
	if len(werr.Fields) > 0 {
		color.Yellow("fields: %s", strings.Join(werr.Fields, ", "))
	}
	if len(werr.Blocking) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Dependent", "Family", "Version", "Status", "Critical"})
		for _, d := range werr.Blocking {
			table.Append([]string{d.DocumentID, d.FamilyNumber, d.Version, string(d.Status), strconv.FormatBool(d.Critical)})
		}
		table.Render()
	}
	if service.IsRetryable(err) {
		color.Yellow("the document changed meanwhile, reload and retry")
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")
		_ = cmd.Usage()
		return true
	}

	return false
}
