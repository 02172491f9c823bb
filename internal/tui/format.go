package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/evanschultz/tally/internal/domain"
)

// formatMoney renders an optional amount with grouping, or "-" when missing.
func formatMoney(currency string, v *float64) string {
	if v == nil {
		return "-"
	}
	return currency + humanize.CommafWithDigits(*v, 2)
}

// formatHours renders an optional duration in hours, or "-" when missing.
func formatHours(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.CommafWithDigits(*v, 2) + "h"
}

func formatROI(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// metricsLine summarizes aggregate metrics for the header.
func metricsLine(currency string, metrics domain.Metrics, count int) string {
	revenue := metrics.TotalRevenue
	hours := metrics.TotalTimeTaken
	return fmt.Sprintf(
		"%s tasks • revenue %s • time %s • avg ROI %s",
		humanize.Comma(int64(count)),
		formatMoney(currency, &revenue),
		formatHours(&hours),
		formatROI(metrics.AverageROI),
	)
}

// taskSummary is the single-line text copied to the clipboard.
func taskSummary(task domain.DerivedTask, currency string) string {
	return fmt.Sprintf(
		"%s | revenue %s | time %s | ROI %s | %s | %s",
		task.Title,
		formatMoney(currency, task.Revenue),
		formatHours(task.TimeTaken),
		formatROI(task.ROI),
		orDash(string(task.Priority)),
		orDash(string(task.Status)),
	)
}

// parseAmountInput reads an optional non-negative amount typed into a form field.
// Blank input returns nil. Grouping commas and a leading currency symbol are ignored.
func parseAmountInput(raw, currency string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return nil, nil
	}
	if currency != "" {
		raw = strings.TrimPrefix(raw, currency)
	}
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, ",", ""), "h")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	if v < 0 {
		return nil, fmt.Errorf("%q must not be negative", raw)
	}
	return &v, nil
}

// amountInputValue formats a stored amount for editing.
func amountInputValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
