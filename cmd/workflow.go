package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/jinkaiteo/edms/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(transitionCmd("submit", "submit a draft for review", service.ActionSubmitForReview,
		"edms submit -d <doc-id> --reviewer bob", bindReviewer))
	rootCmd.AddCommand(transitionCmd("start-review", "start reviewing an assigned document", service.ActionStartReview,
		"edms start-review -d <doc-id>"))
	rootCmd.AddCommand(transitionCmd("review", "complete a review", service.ActionCompleteReview,
		"edms review -d <doc-id> --approved --comment \"looks good\"", bindDecision))
	rootCmd.AddCommand(transitionCmd("route", "route a reviewed document for approval", service.ActionRouteForApproval,
		"edms route -d <doc-id> --approver carol", bindApprover))
	rootCmd.AddCommand(transitionCmd("start-approval", "start approving an assigned document", service.ActionStartApproval,
		"edms start-approval -d <doc-id>"))
	rootCmd.AddCommand(transitionCmd("approve", "record the approval decision", service.ActionApproveDocument,
		"edms approve -d <doc-id> --approved --comment ok --effective-date 2025-04-01", bindDecision, bindEffectiveDate))
	rootCmd.AddCommand(transitionCmd("make-effective", "make an approved document effective", service.ActionMakeEffective,
		"edms make-effective -d <doc-id>", bindEffectiveDate))
	rootCmd.AddCommand(transitionCmd("new-version", "start a new version from an effective document", service.ActionStartVersionWorkflow,
		"edms new-version -d <doc-id> --major --reason-for-change \"new line\" --change-summary \"section 4\"", bindVersion))
	rootCmd.AddCommand(transitionCmd("obsolete", "schedule an effective document for obsolescence", service.ActionObsoleteDocument,
		"edms obsolete -d <doc-id> --reason \"replaced\" --obsolescence-date 2025-06-01", bindObsolescence))
	rootCmd.AddCommand(transitionCmd("reassign", "replace the assigned reviewer or approver", service.ActionReassign,
		"edms reassign -d <doc-id> --reviewer erin", bindReviewer, bindApprover))
	rootCmd.AddCommand(transitionCmd("terminate", "terminate a document", service.ActionTerminate,
		"edms terminate -d <doc-id> --reason \"withdrawn\"", bindReason))
}

type transitionFlags struct {
	docID            string
	reviewer         string
	approver         string
	approved         bool
	rejected         bool
	comment          string
	effectiveDate    string
	major            bool
	reasonForChange  string
	changeSummary    string
	reason           string
	obsolescenceDate string
	expectedRevision int64
}

type flagBinder func(command *cobra.Command, f *transitionFlags)

func bindReviewer(command *cobra.Command, f *transitionFlags) {
	command.Flags().StringVar(&f.reviewer, "reviewer", "", "reviewer user id")
}

func bindApprover(command *cobra.Command, f *transitionFlags) {
	command.Flags().StringVar(&f.approver, "approver", "", "approver user id")
}

func bindDecision(command *cobra.Command, f *transitionFlags) {
	command.Flags().BoolVar(&f.approved, "approved", false, "accept the document")
	command.Flags().BoolVar(&f.rejected, "rejected", false, "return the document to draft")
	command.Flags().StringVarP(&f.comment, "comment", "c", "", "decision comment")
}

func bindEffectiveDate(command *cobra.Command, f *transitionFlags) {
	command.Flags().StringVar(&f.effectiveDate, "effective-date", "", "effective date, YYYY-MM-DD or RFC 3339")
}

func bindVersion(command *cobra.Command, f *transitionFlags) {
	command.Flags().BoolVar(&f.major, "major", false, "bump the major version")
	command.Flags().StringVar(&f.reasonForChange, "reason-for-change", "", "why the document changes")
	command.Flags().StringVar(&f.changeSummary, "change-summary", "", "what changes")
}

func bindObsolescence(command *cobra.Command, f *transitionFlags) {
	bindReason(command, f)
	command.Flags().StringVar(&f.obsolescenceDate, "obsolescence-date", "", "obsolescence date, YYYY-MM-DD or RFC 3339")
}

func bindReason(command *cobra.Command, f *transitionFlags) {
	command.Flags().StringVar(&f.reason, "reason", "", "reason")
}

func transitionCmd(use, short string, action service.Action, example string, binders ...flagBinder) *cobra.Command {
	command, _ := newTransitionCmd(use, short, action, example, binders...)
	return command
}

func newTransitionCmd(use, short string, action service.Action, example string, binders ...flagBinder) (*cobra.Command, *transitionFlags) {
	f := &transitionFlags{}

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    short + " (" + string(action) + ")",
		Example: example,
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			actor, ok := actingUser()
			if !ok {
				return
			}

			payload, err := f.payload(cmd)
			if err != nil {
				color.Red("%v", err)
				return
			}

			ctx := context.Background()
			client, _, ok := openClient(ctx)
			if !ok {
				return
			}
			defer closeClient(client)

			record, err := client.Workflow.ApplyTransition(ctx, f.docID, action, actor, payload)
			if err != nil {
				printError(err)
				return
			}
			printRecords(record)

			doc, err := client.Documents.GetDocument(ctx, record.DocumentID)
			if err != nil {
				printError(err)
				return
			}
			printDocuments(doc)
		},
	}

	command.Flags().StringVarP(&f.docID, "doc-id", "d", "", "document id (required)")
	for _, bind := range binders {
		bind(command, f)
	}
	command.Flags().Int64Var(&f.expectedRevision, "expected-revision", 0, "refuse if the document revision differs")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command, f
}

func (f *transitionFlags) payload(cmd *cobra.Command) (service.Payload, error) {
	payload := service.Payload{
		ReviewerID:      f.reviewer,
		ApproverID:      f.approver,
		Comment:         f.comment,
		MajorIncrement:  f.major,
		ReasonForChange: f.reasonForChange,
		ChangeSummary:   f.changeSummary,
		Reason:          f.reason,
	}

	if f.approved && f.rejected {
		return payload, errors.New("--approved and --rejected are exclusive")
	}
	if f.approved || f.rejected {
		payload.Approved = service.Bool(f.approved)
	}

	var err error
	if payload.EffectiveDate, err = parseDate(f.effectiveDate); err != nil {
		return payload, err
	}
	if payload.ObsolescenceDate, err = parseDate(f.obsolescenceDate); err != nil {
		return payload, err
	}

	if flag := cmd.Flag("expected-revision"); flag != nil && flag.Changed {
		rev := f.expectedRevision
		payload.ExpectedRevision = &rev
	}

	return payload, nil
}

// parseDate accepts a calendar day (UTC midnight) or a full RFC 3339 time.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.New("invalid date " + value + ", expected YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}
