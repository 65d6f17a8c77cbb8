package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobValidate(t *testing.T) {
	valid := Job{
		JobTitle:  "Go Engineer",
		Company:   "Acme",
		Location:  "Berlin",
		ApplyLink: "http://x/1",
		Source:    SourceListingAPI,
	}

	tests := []struct {
		name    string
		mutate  func(j *Job)
		wantErr bool
	}{
		{name: "complete", mutate: func(j *Job) {}},
		{name: "salary and description are optional", mutate: func(j *Job) { j.Salary = ""; j.Description = "" }},
		{name: "missing title", mutate: func(j *Job) { j.JobTitle = "" }, wantErr: true},
		{name: "blank company", mutate: func(j *Job) { j.Company = "   " }, wantErr: true},
		{name: "missing location", mutate: func(j *Job) { j.Location = "" }, wantErr: true},
		{name: "missing apply link", mutate: func(j *Job) { j.ApplyLink = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := valid
			tt.mutate(&j)
			err := j.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestJobKey(t *testing.T) {
	a := Job{ApplyLink: "http://x/1", Source: SourceListingAPI, JobTitle: "A"}
	b := Job{ApplyLink: "http://x/1", Source: SourceListingAPI, JobTitle: "B"}
	c := Job{ApplyLink: "http://x/1", Source: SourceLinkedIn}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSearchCriteria(t *testing.T) {
	assert.True(t, SearchCriteria{}.IsEmpty())
	assert.True(t, SearchCriteria{Position: "  ", Skills: "\t"}.IsEmpty())

	c := SearchCriteria{Position: " Go Developer ", Skills: "Kubernetes"}
	assert.False(t, c.IsEmpty())
	assert.Equal(t, []string{"go developer", "kubernetes"}, c.Terms())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "transient wrapper", err: NewTransientError("list page", errors.New("503")), want: true},
		{name: "wrapped transient", err: fmt.Errorf("indeed: %w", NewTransientError("", errors.New("reset"))), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "access denied", err: fmt.Errorf("linkedin: %w", ErrAccessDenied), want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
