package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	v := Version{Major: 1, Minor: 0}
	assert.Equal(t, "01.00", v.String())
	assert.Equal(t, "01.01", v.Next(false).String())
	assert.Equal(t, "02.00", Version{Major: 1, Minor: 7}.Next(true).String())
	assert.Equal(t, "12.34", Version{Major: 12, Minor: 34}.String())

	assert.True(t, Version{1, 9}.Less(Version{2, 0}))
	assert.True(t, Version{1, 1}.Less(Version{1, 2}))
	assert.False(t, Version{1, 2}.Less(Version{1, 2}))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "01.00", want: Version{1, 0}},
		{in: "2.13", want: Version{2, 13}},
		{in: " 03.01 ", want: Version{3, 1}},
		{in: "1", wantErr: true},
		{in: "a.b", wantErr: true},
		{in: "1.-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus(t *testing.T) {
	for _, s := range InFlightStatuses {
		assert.True(t, s.InFlight(), s)
		assert.False(t, s.IsTerminal(), s)
	}

	for _, s := range []Status{StatusSuperseded, StatusObsolete, StatusTerminated} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.InFlight(), s)
	}

	assert.False(t, StatusEffective.InFlight())
	assert.False(t, StatusEffective.IsTerminal())
	assert.False(t, Status("PUBLISHED").IsValid())
}

func TestDocumentDerivedConditions(t *testing.T) {
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	reviewer := "bob"

	doc := &Document{Status: StatusApproved, EffectiveDate: &date, Reviewer: &reviewer}
	assert.True(t, doc.IsPendingEffective())
	assert.False(t, doc.IsPendingObsolete())

	clone := doc.Clone()
	*clone.Reviewer = "erin"
	clone.EffectiveDate = nil
	assert.Equal(t, "bob", *doc.Reviewer)
	assert.NotNil(t, doc.EffectiveDate)

	doc = &Document{Status: StatusEffective, ObsolescenceDate: &date}
	assert.True(t, doc.IsPendingObsolete())
	assert.False(t, doc.IsPendingEffective())
}
