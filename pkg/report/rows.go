// Package report shapes evaluation records into tables and renders them.
package report

import (
	"strconv"

	"github.com/pkg/errors"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

// Format selects the table layout.
type Format string

const (
	// FormatShort has one row per slice, with a column pair per test arm.
	FormatShort Format = "short"
	// FormatLong has one row per slice and test arm.
	FormatLong Format = "long"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatShort, FormatLong:
		return f, nil
	}
	return "", errors.Errorf("unknown output format %q, must be one of short, long", s)
}

const (
	columnDiscriminant = "Discriminant"
	columnCohort       = "Cohort"
	columnUplift       = "CR improvement"
	columnProbability  = "Probability"
	columnFisher       = "Fisher p-value"
	columnStatus       = "Status"
	columnComment      = "Comment"
)

// Table is a grid of cells shared by every renderer.
type Table struct {
	Header []string
	Rows   [][]string
}

// Rows builds the table for the records of one funnel. arms lists the test roles
// to report, in column order. detailed adds the raw impression and conversion counts.
func Rows(records []abv1.Record, arms []string, format Format, detailed bool) Table {
	if format == FormatLong {
		return longRows(records, arms, detailed)
	}
	return shortRows(records, arms, detailed)
}

func shortRows(records []abv1.Record, arms []string, detailed bool) Table {
	prefix := func(arm, column string) string {
		if len(arms) == 1 {
			return column
		}
		return arm + " " + column
	}

	header := []string{columnDiscriminant, columnCohort}
	for _, arm := range arms {
		header = append(header, prefix(arm, columnUplift), prefix(arm, columnProbability))
	}
	header = append(header, columnComment)
	if detailed {
		header = append(header, "Control Impressions", "Control Conversions")
		for _, arm := range arms {
			header = append(header, arm+" Impressions", arm+" Conversions")
		}
	}

	t := Table{Header: header}
	for _, rec := range records {
		row := []string{rec.Discriminant, rec.Cohort}
		for _, arm := range arms {
			result, _ := rec.Arm(arm)
			row = append(row, formatFloat(result.Uplift), formatFloat(result.Probability))
		}
		row = append(row, rec.Comment)
		if detailed {
			row = append(row, formatInt(rec.Control.Impressions), formatInt(rec.Control.Conversions))
			for _, arm := range arms {
				result, _ := rec.Arm(arm)
				row = append(row, formatInt(result.Counts.Impressions), formatInt(result.Counts.Conversions))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func longRows(records []abv1.Record, arms []string, detailed bool) Table {
	header := []string{columnDiscriminant, columnCohort, "Arm", "Group", columnUplift, columnProbability, columnFisher, columnStatus, columnComment}
	if detailed {
		header = append(header, "Control Impressions", "Control Conversions", "Impressions", "Conversions")
	}

	t := Table{Header: header}
	for _, rec := range records {
		for _, arm := range arms {
			result, ok := rec.Arm(arm)
			status, comment := result.Status, result.Comment
			if !ok {
				// the record stopped before reaching its arms
				status, comment = rec.Status, rec.Comment
			}
			row := []string{
				rec.Discriminant, rec.Cohort, arm, result.Group,
				formatFloat(result.Uplift), formatFloat(result.Probability), formatFloat(result.FisherExact),
				status.String(), comment,
			}
			if detailed {
				row = append(row,
					formatInt(rec.Control.Impressions), formatInt(rec.Control.Conversions),
					formatInt(result.Counts.Impressions), formatInt(result.Counts.Conversions))
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
