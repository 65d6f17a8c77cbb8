package domain

import (
	"fmt"
	"strings"
)

// Source tags the adapter a Job came from. It is the secondary half of a
// Job's identity key.
type Source string

const (
	SourceListingAPI Source = "listing_api"
	SourceIndeed     Source = "indeed"
	SourceLinkedIn   Source = "linkedin"
)

// Sentinels used by the normalizer when a field cannot be resolved.
const (
	TitleNotProvided       = "Title Not Provided"
	CompanyNotProvided     = "Company Not Provided"
	LocationNotProvided    = "Location Not Provided"
	SalaryNotSpecified     = "Not specified"
	DescriptionNotProvided = "Description Not Provided"
	ApplyLinkNotProvided   = "Apply Link Not Provided"
)

type Job struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
	ApplyLink   string `json:"apply_link"`
	Source      Source `json:"source"`
}

// Key identifies a posting. Two jobs with the same key are the same posting.
type Key struct {
	ApplyLink string
	Source    Source
}

func (j Job) Key() Key {
	return Key{ApplyLink: j.ApplyLink, Source: j.Source}
}

// Validate checks the fields every persisted or returned Job must carry.
func (j Job) Validate() error {
	var missing []string
	if strings.TrimSpace(j.JobTitle) == "" {
		missing = append(missing, "job_title")
	}
	if strings.TrimSpace(j.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(j.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(j.ApplyLink) == "" {
		missing = append(missing, "apply_link")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}
	return nil
}

// HasApplyLink reports whether the job carries a usable identity.
func (j Job) HasApplyLink() bool {
	return j.ApplyLink != "" && j.ApplyLink != ApplyLinkNotProvided
}

// SearchCriteria is a sparse filter; an empty field means no constraint.
type SearchCriteria struct {
	Position   string `json:"position,omitempty"`
	Experience string `json:"experience,omitempty"`
	Salary     string `json:"salary,omitempty"`
	JobNature  string `json:"jobNature,omitempty"`
	Location   string `json:"location,omitempty"`
	Skills     string `json:"skills,omitempty"`
}

func (c SearchCriteria) IsEmpty() bool {
	for _, v := range []string{c.Position, c.Experience, c.Salary, c.JobNature, c.Location, c.Skills} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Terms returns the non-empty criteria values, lowercased.
func (c SearchCriteria) Terms() []string {
	var out []string
	for _, v := range []string{c.Position, c.Experience, c.Salary, c.JobNature, c.Location, c.Skills} {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
