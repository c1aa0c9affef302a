package usecase

import (
	"fmt"
	"io"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// Reporter displays and clears the accumulated event log.
type Reporter struct {
	report domain.ReportStore
	out    io.Writer
}

// NewReporter creates a reporter printing to out.
func NewReporter(report domain.ReportStore, out io.Writer) *Reporter {
	return &Reporter{report: report, out: out}
}

// View prints the report contents verbatim under a header.
// A missing report is ErrReportNotFound.
func (r *Reporter) View() error {
	if !r.report.Exists() {
		return domain.ErrReportNotFound
	}

	data, err := r.report.Read()
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, "=== Integrity Report ===")
	_, err = r.out.Write(data)
	return err
}

// Clear deletes the report. A missing report is not an error.
func (r *Reporter) Clear() error {
	removed, err := r.report.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear report: %w", err)
	}

	if removed {
		fmt.Fprintln(r.out, "Integrity report cleared.")
	} else {
		fmt.Fprintln(r.out, "No integrity report found.")
	}
	return nil
}
