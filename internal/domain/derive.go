package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is the collation locale used for title tie-breaks.
var DefaultLocale = language.English

type DerivedTask struct {
	Task
	ROI float64 `json:"roi"`
}

type Metrics struct {
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalTimeTaken float64 `json:"totalTimeTaken"`
	AverageROI     float64 `json:"averageROI"`
}

// ComputeROI returns revenue per unit of time rounded to 2 decimals.
// Missing inputs and non-positive time yield 0. Zero revenue is a real value and divides normally.
func ComputeROI(revenue, timeTaken *float64) float64 {
	if revenue == nil || timeTaken == nil || *timeTaken <= 0 {
		return 0
	}
	roi := round2(*revenue / *timeTaken)
	if !isFinite(roi) {
		return 0
	}
	return roi
}

// SortTasksStable ranks tasks by ROI, then priority, then title, using DefaultLocale.
func SortTasksStable(tasks []Task) []Task {
	return SortTasksStableIn(DefaultLocale, tasks)
}

// SortTasksStableIn ranks tasks with titles collated for tag. The input is not modified.
func SortTasksStableIn(tag language.Tag, tasks []Task) []Task {
	type ranked struct {
		task Task
		roi  float64
		rank int
	}
	entries := make([]ranked, len(tasks))
	for i, t := range tasks {
		entries[i] = ranked{task: t, roi: t.ROI(), rank: t.Priority.Rank()}
	}

	// Collators keep scratch buffers, so each sort gets its own.
	col := collate.New(tag)
	slices.SortStableFunc(entries, func(a, b ranked) int {
		if c := cmp.Compare(b.roi, a.roi); c != 0 {
			return c
		}
		if c := cmp.Compare(b.rank, a.rank); c != 0 {
			return c
		}
		if c := col.CompareString(a.task.Title, b.task.Title); c != 0 {
			return c
		}
		if c := strings.Compare(a.task.Title, b.task.Title); c != 0 {
			return c
		}
		return strings.Compare(a.task.ID, b.task.ID)
	})

	out := make([]Task, len(entries))
	for i, e := range entries {
		out[i] = e.task
	}
	return out
}

// ComputeMetrics aggregates the derived set. It reads each task's ROI field rather than recomputing it.
func ComputeMetrics(tasks []DerivedTask) Metrics {
	var m Metrics
	if len(tasks) == 0 {
		return m
	}
	var roiSum float64
	for _, t := range tasks {
		m.TotalRevenue += AmountValue(t.Revenue)
		m.TotalTimeTaken += AmountValue(t.TimeTaken)
		roiSum += t.ROI
	}
	m.AverageROI = round2(roiSum / float64(len(tasks)))
	return m
}

// Derive builds the ranked, ROI-annotated view and its metrics.
func Derive(tag language.Tag, tasks []Task) ([]DerivedTask, Metrics) {
	sorted := SortTasksStableIn(tag, tasks)
	derived := make([]DerivedTask, len(sorted))
	for i, t := range sorted {
		derived[i] = DerivedTask{Task: t.Clone(), ROI: t.ROI()}
	}
	return derived, ComputeMetrics(derived)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
