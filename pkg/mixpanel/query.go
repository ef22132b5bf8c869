package mixpanel

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
)

// Filter restricts a funnel to the users whose property Type["Name"] contains Cohort.
type Filter struct {
	Type   string
	Name   string
	Cohort string
}

func (f Filter) property() string {
	return fmt.Sprintf(`%s["%s"]`, f.Type, escape(f.Name))
}

// Expression renders the filter in the Mixpanel segmentation expression language.
func (f Filter) Expression() string {
	return fmt.Sprintf(`("%s" in %s) and (defined (%s))`, escape(f.Cohort), f.property(), f.property())
}

// FunnelQuery selects a funnel over a date range broken down on the experiment group property.
type FunnelQuery struct {
	FunnelID int64
	From     time.Time
	To       time.Time
	// By is the breakdown property, "<type>.<name>".
	By      string
	Filters []Filter
}

// Where joins the filter expressions, empty when the query is unfiltered.
func (q FunnelQuery) Where() string {
	parts := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		parts = append(parts, f.Expression())
	}
	return strings.Join(parts, " and ")
}

// Values returns the query parameters. Data is requested per month and summed
// afterwards by AggregateFunnelData.
func (q FunnelQuery) Values() (url.Values, error) {
	byType, byName := configv1.SplitProperty(q.By)
	if !strings.Contains(q.By, ".") || byType == "" || byName == "" {
		return nil, errors.Errorf("breakdown %q must have the form <type>.<name>", q.By)
	}

	v := url.Values{}
	v.Set("funnel_id", strconv.FormatInt(q.FunnelID, 10))
	v.Set("from_date", q.From.Format(configv1.DateFormat))
	v.Set("to_date", q.To.Format(configv1.DateFormat))
	v.Set("on", fmt.Sprintf(`%s["%s"]`, byType, escape(byName)))
	v.Set("unit", "month")
	if where := q.Where(); where != "" {
		v.Set("where", where)
	}
	return v, nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
