// Package report renders grade aggregates as terminal tables.
package report

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/okian/gradestats/internal/domain/aggregate"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/stats"
)

const undefined = "undefined"

// Reporter prints aggregate tables to a writer.
type Reporter struct {
	out       io.Writer
	engine    *aggregate.Engine
	threshold float64
}

// New creates a Reporter writing to out.
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:       out,
		engine:    aggregate.New(),
		threshold: stats.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LearnerClasses prints one learner's composite per class.
func (r *Reporter) LearnerClasses(records []model.ScoreRecord, learnerID int) error {
	rows, err := r.engine.AveragePerClassForLearner(records, learnerID)
	if err != nil {
		return fmt.Errorf("learner %d: %w", learnerID, err)
	}

	r.title(fmt.Sprintf("Class averages for learner %d", learnerID))
	if len(rows) == 0 {
		color.New(color.FgRed).Fprintln(r.out, "no grades")
		return nil
	}
	table := r.table("Class", "Average", "Pass")
	for _, row := range rows {
		table.Append([]string{row.ClassID, formatAvg(row.Avg), r.pass(row.Avg)})
	}
	table.Render()
	return nil
}

// Learners prints every learner's composite, optionally restricted to a class.
func (r *Reporter) Learners(records []model.ScoreRecord, classID *string) error {
	rows, err := r.engine.AveragePerLearner(records, classID)
	if err != nil {
		return fmt.Errorf("learners: %w", err)
	}

	heading := "Learner averages"
	if classID != nil {
		heading += " in " + *classID
	}
	r.title(heading)
	table := r.table("Learner", "Average", "Pass")
	for _, row := range rows {
		table.Append([]string{strconv.Itoa(row.LearnerID), formatAvg(row.Avg), r.pass(row.Avg)})
	}
	table.Render()
	return nil
}

// Statistics prints global statistics followed by one row per class.
func (r *Reporter) Statistics(records []model.ScoreRecord) error {
	r.title(fmt.Sprintf("Pass rate (threshold > %s)", strconv.FormatFloat(r.threshold, 'f', -1, 64)))
	table := r.table("Scope", "Total", "Above", "Percent")

	global, err := r.compute(records, nil)
	if err != nil {
		return err
	}
	table.Append(statRow("all", global))

	for _, class := range Classes(records) {
		st, err := r.compute(records, &class)
		if err != nil {
			return err
		}
		table.Append(statRow(class, st))
	}
	table.Render()
	return nil
}

func (r *Reporter) compute(records []model.ScoreRecord, classID *string) (model.Statistics, error) {
	rows, err := r.engine.AveragePerLearner(records, classID)
	if err != nil {
		return model.Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	return stats.Compute(aggregate.Composites(rows), stats.WithThreshold(r.threshold)), nil
}

// Classes returns the distinct class ids in records, sorted.
func Classes(records []model.ScoreRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.ClassID]; ok {
			continue
		}
		seen[rec.ClassID] = struct{}{}
		out = append(out, rec.ClassID)
	}
	slices.Sort(out)
	return out
}

func (r *Reporter) title(s string) {
	color.New(color.FgYellow, color.Bold).Fprintln(r.out, "\n"+s)
}

func (r *Reporter) table(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	return table
}

func (r *Reporter) pass(avg float64) string {
	switch {
	case math.IsNaN(avg):
		return "-"
	case avg > r.threshold:
		return color.GreenString("yes")
	default:
		return color.RedString("no")
	}
}

func formatAvg(avg float64) string {
	if math.IsNaN(avg) {
		return undefined
	}
	return strconv.FormatFloat(avg, 'f', 2, 64)
}

func statRow(scope string, st model.Statistics) []string {
	return []string{
		scope,
		strconv.Itoa(st.Total),
		strconv.Itoa(st.AboveThreshold),
		strconv.FormatFloat(st.Percentage, 'f', 2, 64) + "%",
	}
}
