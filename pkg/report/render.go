package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
	"github.com/mixbaba/mixbaba/pkg/funnel"
)

// Target selects where results are written.
type Target string

const (
	TargetTerminal Target = "terminal"
	TargetCSV      Target = "csv"
	TargetXLSX     Target = "xlsx"
	// TargetBoth writes to the terminal and to a CSV file.
	TargetBoth Target = "both"
)

func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetTerminal, TargetCSV, TargetXLSX, TargetBoth:
		return t, nil
	}
	return "", errors.Errorf("unknown output %q, must be one of terminal, csv, xlsx, both", s)
}

func (t Target) terminal() bool { return t == TargetTerminal || t == TargetBoth }
func (t Target) csv() bool      { return t == TargetCSV || t == TargetBoth }

var bold = lipgloss.NewStyle().Bold(true)

const separator = "-----------------------------------------------------"

// Options control how a funnel result is written.
type Options struct {
	Target   Target
	Format   Format
	Detailed bool
	// Dir receives the csv and xlsx files, the working directory when empty.
	Dir string
	// Out receives the terminal output.
	Out io.Writer
}

// Write renders one funnel result to the configured target and returns the
// paths of the files written.
func Write(result *funnel.Result, opts Options) ([]string, error) {
	table := Rows(result.Records(), result.Arms(), opts.Format, opts.Detailed)

	if opts.Target.terminal() {
		if err := WriteTerminal(opts.Out, result, table); err != nil {
			return nil, err
		}
	}

	var files []string
	if opts.Target.csv() {
		path := filepath.Join(opts.Dir, FileName(result.Funnel, "csv"))
		if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, table) }); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if opts.Target == TargetXLSX {
		path := filepath.Join(opts.Dir, FileName(result.Funnel, "xlsx"))
		if err := WriteXLSX(path, result.Funnel.Name, table); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	for _, f := range files {
		log.WithField("file", f).Info("results saved")
	}
	return files, nil
}

// FileName is "<funnel id>-<funnel name>.<ext>", with path separators removed from the name.
func FileName(f configv1.FunnelConfig, ext string) string {
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(f.Name)
	return fmt.Sprintf("%d-%s.%s", f.ID, name, ext)
}

// WriteTerminal prints the funnel heading, the role assignment, the table and
// the per-arm summary.
func WriteTerminal(w io.Writer, result *funnel.Result, table Table) error {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Results for the funnel %s -- %s\n",
		bold.Render(fmt.Sprint(result.Funnel.ID)), bold.Render(result.Funnel.Name))
	fmt.Fprintln(w, describeRoles(result.Roles()))

	WriteTable(w, table)

	for _, s := range Summarize(result.Records(), result.Arms()) {
		fmt.Fprintf(w, "%s: significant in %d of %d slices, probability mean %.4f median %.4f max %.4f, mean CR improvement %.4f\n",
			bold.Render(s.Arm), s.Significant, s.Slices, s.MeanProbability, s.MedianProbability, s.MaxProbability, s.MeanUplift)
	}
	return nil
}

// WriteTable draws the table with borders.
func WriteTable(w io.Writer, table Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(table.Header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(table.Rows)
	tw.Render()
}

func describeRoles(roles abv1.RoleAssignment) string {
	if roles.Control == "" {
		return "No control group found"
	}
	parts := []string{fmt.Sprintf("Control group is: %s", bold.Render(roles.Control))}
	if roles.HasControl2() {
		parts = append(parts, fmt.Sprintf("second Control group is: %s", bold.Render(roles.Control2)))
	}
	for _, t := range roles.Tests {
		parts = append(parts, fmt.Sprintf("%s group is: %s", strings.ToLower(t.Name), bold.Render(t.Group)))
	}
	return strings.Join(parts, ", ")
}

// WriteCSV writes the table with a header line.
func WriteCSV(w io.Writer, table Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return errors.Wrap(err, "writing csv rows")
	}
	return nil
}

// WriteXLSX saves the table as a workbook with a single sheet.
func WriteXLSX(path, sheet string, table Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	for i, row := range append([][]string{table.Header}, table.Rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return nil
}

// sheetName drops the characters excel forbids in sheet names and truncates to 31 runes.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return -1
		}
		return r
	}, name)
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	if strings.TrimSpace(name) == "" {
		return "Results"
	}
	return name
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
