package scrape

import (
	"strconv"
	"strings"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
)

// FieldPaths lists, per canonical field, the dotted paths to try in a raw
// record. The first path holding a non-empty value wins.
type FieldPaths struct {
	Title       []string
	Company     []string
	Location    []string
	Salary      []string
	Description []string
	ApplyLink   []string
}

var flatPaths = FieldPaths{
	Title:       []string{types.FieldTitle},
	Company:     []string{types.FieldCompany},
	Location:    []string{types.FieldLocation},
	Salary:      []string{types.FieldSalary},
	Description: []string{types.FieldDescription},
	ApplyLink:   []string{types.FieldApplyLink},
}

var fieldPaths = map[domain.Source]FieldPaths{
	domain.SourceListingAPI: {
		Title:       []string{"job.title"},
		Company:     []string{"job.company", "job.companyName"},
		Location:    []string{"job.location", "job.formattedLocation"},
		Salary:      []string{"job.salary", "job.salarySnippet.text"},
		Description: []string{"job.description"},
		ApplyLink:   []string{"requestMetadata.url", "job.url", types.FieldApplyLink},
	},
	domain.SourceIndeed:   flatPaths,
	domain.SourceLinkedIn: flatPaths,
}

// Labels recognised in a description when location is otherwise unknown.
var locationLabels = []string{"Work Location:"}

func pathsFor(source domain.Source) FieldPaths {
	if p, ok := fieldPaths[source]; ok {
		return p
	}
	return flatPaths
}

// Normalize maps a raw record onto a Job. It is pure: the same raw input
// always yields the same Job.
func Normalize(raw types.RawRecord, source domain.Source) domain.Job {
	p := pathsFor(source)

	rawDesc := lookupFirst(raw.Data, p.Description)
	desc := util.CleanBlock(rawDesc)

	// labels match at the very start of a raw line; only the value is cleaned
	location := util.CleanText(lookupFirst(raw.Data, p.Location))
	if location == "" && desc != "" {
		location = util.LabeledValue(rawDesc, locationLabels...)
	}

	return domain.Job{
		JobTitle:    orSentinel(util.CleanText(lookupFirst(raw.Data, p.Title)), domain.TitleNotProvided),
		Company:     orSentinel(util.CleanText(lookupFirst(raw.Data, p.Company)), domain.CompanyNotProvided),
		Location:    orSentinel(location, domain.LocationNotProvided),
		Salary:      orSentinel(util.CleanText(lookupFirst(raw.Data, p.Salary)), domain.SalaryNotSpecified),
		Description: orSentinel(desc, domain.DescriptionNotProvided),
		ApplyLink:   orSentinel(strings.TrimSpace(lookupFirst(raw.Data, p.ApplyLink)), domain.ApplyLinkNotProvided),
		Source:      source,
	}
}

func orSentinel(v, sentinel string) string {
	if v == "" {
		return sentinel
	}
	return v
}

func lookupFirst(data map[string]any, paths []string) string {
	for _, p := range paths {
		if v := lookupPath(data, p); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// lookupPath walks a dotted path through nested JSON objects. Scalars are
// rendered as strings; anything else counts as absent.
func lookupPath(data map[string]any, path string) string {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}

	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
