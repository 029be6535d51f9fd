package service

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// Payload carries the action-specific input of a transition. Each action reads
// only the fields it needs.
type Payload struct {
	ReviewerID       string     `json:"reviewer_id,omitempty"`
	ApproverID       string     `json:"approver_id,omitempty"`
	Approved         *bool      `json:"approved,omitempty"`
	Comment          string     `json:"comment,omitempty"`
	EffectiveDate    *time.Time `json:"effective_date,omitempty"`
	MajorIncrement   bool       `json:"major_increment,omitempty"`
	ReasonForChange  string     `json:"reason_for_change,omitempty"`
	ChangeSummary    string     `json:"change_summary,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	ObsolescenceDate *time.Time `json:"obsolescence_date,omitempty"`
	// ExpectedRevision, when set, must equal the stored document revision.
	ExpectedRevision *int64 `json:"expected_revision,omitempty"`
}

func (p Payload) snapshot(extra map[string]interface{}) datatypes.JSON {
	data, err := json.Marshal(p)
	if err != nil || len(extra) == 0 {
		return datatypes.JSON(data)
	}

	merged := map[string]interface{}{}
	_ = json.Unmarshal(data, &merged)
	for k, v := range extra {
		merged[k] = v
	}
	data, _ = json.Marshal(merged)
	return datatypes.JSON(data)
}

// Bool is a helper for building payloads.
func Bool(v bool) *bool {
	return &v
}

type assignReviewerInput struct {
	ReviewerID string `json:"reviewer_id" validate:"nonblank"`
}

type assignApproverInput struct {
	ApproverID string `json:"approver_id" validate:"nonblank"`
}

type decisionInput struct {
	Approved *bool  `json:"approved" validate:"required"`
	Comment  string `json:"comment" validate:"nonblank"`
}

type versionInput struct {
	ReasonForChange string `json:"reason_for_change" validate:"nonblank"`
	ChangeSummary   string `json:"change_summary" validate:"nonblank"`
}

type obsolescenceInput struct {
	Reason           string     `json:"reason" validate:"nonblank"`
	ObsolescenceDate *time.Time `json:"obsolescence_date" validate:"required"`
}

type reasonInput struct {
	Reason string `json:"reason" validate:"nonblank"`
}

type createInput struct {
	DocumentType string `json:"document_type" validate:"nonblank,max=16"`
	Title        string `json:"title" validate:"nonblank"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// check validates input and turns validation failures into a
// MissingRequiredField error naming the offending fields.
func check(v *validator.Validate, op, documentID string, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return missingFields(op, documentID, "payload incomplete", fields...)
}
