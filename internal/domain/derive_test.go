package domain

import (
	"slices"
	"testing"

	"golang.org/x/text/language"
)

func mustTask(t *testing.T, in TaskInput) Task {
	t.Helper()
	task, err := NewTask(in)
	if err != nil {
		t.Fatalf("NewTask(%q) error = %v", in.Title, err)
	}
	return task
}

func taskIDs(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestComputeROI(t *testing.T) {
	cases := []struct {
		name    string
		revenue *float64
		time    *float64
		want    float64
	}{
		{name: "basic", revenue: Amount(100), time: Amount(4), want: 25},
		{name: "zero revenue divides", revenue: Amount(0), time: Amount(5), want: 0},
		{name: "zero time", revenue: Amount(100), time: Amount(0), want: 0},
		{name: "negative time", revenue: Amount(100), time: Amount(-2), want: 0},
		{name: "missing revenue", revenue: nil, time: Amount(5), want: 0},
		{name: "missing time", revenue: Amount(5), time: nil, want: 0},
		{name: "rounds to cents", revenue: Amount(10), time: Amount(3), want: 3.33},
		{name: "rounds half up", revenue: Amount(1), time: Amount(8), want: 0.13},
		{name: "scaled near-half rounds up", revenue: Amount(2.675), time: Amount(1), want: 2.68},
		{name: "scaled near-half rounds up again", revenue: Amount(1.115), time: Amount(1), want: 1.12},
		{name: "scaled near-half rounds down", revenue: Amount(1.005), time: Amount(1), want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeROI(tc.revenue, tc.time); got != tc.want {
				t.Fatalf("ComputeROI() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeROIZeroRevenueUsesDivisionPath(t *testing.T) {
	if got := ComputeROI(Amount(0), Amount(5)); got != 0 {
		t.Fatalf("ComputeROI(0, 5) = %v, want 0", got)
	}
	task := mustTask(t, TaskInput{ID: "t1", Title: "Free work", Revenue: Amount(0), TimeTaken: Amount(5)})
	if task.Revenue == nil {
		t.Fatal("expected zero revenue to be kept as a present value")
	}
	if got := task.ROI(); got != 0 {
		t.Fatalf("ROI() = %v, want 0", got)
	}
}

func TestSortTasksStableOrdering(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "low", Title: "Low ROI", Revenue: Amount(10), TimeTaken: Amount(10), Priority: PriorityHigh}),
		mustTask(t, TaskInput{ID: "high", Title: "High ROI", Revenue: Amount(100), TimeTaken: Amount(2), Priority: PriorityLow}),
		mustTask(t, TaskInput{ID: "med-b", Title: "beta", Revenue: Amount(50), TimeTaken: Amount(5), Priority: PriorityMedium}),
		mustTask(t, TaskInput{ID: "med-a", Title: "Alpha", Revenue: Amount(50), TimeTaken: Amount(5), Priority: PriorityMedium}),
		mustTask(t, TaskInput{ID: "hi-pri", Title: "zeta", Revenue: Amount(50), TimeTaken: Amount(5), Priority: PriorityHigh}),
	}
	got := taskIDs(SortTasksStable(tasks))
	want := []string{"high", "hi-pri", "med-a", "med-b", "low"}
	if !slices.Equal(got, want) {
		t.Fatalf("SortTasksStable() = %v, want %v", got, want)
	}
}

func TestSortTasksStableDoesNotMutateInput(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "a", Title: "A", Revenue: Amount(1), TimeTaken: Amount(1)}),
		mustTask(t, TaskInput{ID: "b", Title: "B", Revenue: Amount(9), TimeTaken: Amount(1)}),
	}
	before := taskIDs(tasks)
	_ = SortTasksStable(tasks)
	if !slices.Equal(taskIDs(tasks), before) {
		t.Fatalf("input reordered: %v", taskIDs(tasks))
	}
}

func TestSortTasksStableIsIdempotentAndPermutes(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "1", Title: "Write docs", Revenue: Amount(30), TimeTaken: Amount(3), Priority: PriorityLow}),
		mustTask(t, TaskInput{ID: "2", Title: "Fix bug", Revenue: Amount(30), TimeTaken: Amount(3), Priority: PriorityLow}),
		mustTask(t, TaskInput{ID: "3", Title: "Ship", Revenue: Amount(0), TimeTaken: Amount(1), Priority: "Urgent"}),
		mustTask(t, TaskInput{ID: "4", Title: "Plan", Priority: PriorityHigh}),
		mustTask(t, TaskInput{ID: "5", Title: "Plan", Priority: PriorityHigh}),
		mustTask(t, TaskInput{ID: "6", Title: "Review", Revenue: Amount(500), TimeTaken: Amount(0.5), Priority: PriorityMedium}),
	}
	once := SortTasksStable(tasks)
	twice := SortTasksStable(once)
	if !slices.Equal(taskIDs(once), taskIDs(twice)) {
		t.Fatalf("sort not idempotent: %v then %v", taskIDs(once), taskIDs(twice))
	}

	gotIDs := taskIDs(once)
	slices.Sort(gotIDs)
	wantIDs := taskIDs(tasks)
	slices.Sort(wantIDs)
	if !slices.Equal(gotIDs, wantIDs) {
		t.Fatalf("sort lost or duplicated tasks: %v", gotIDs)
	}

	reversed := slices.Clone(tasks)
	slices.Reverse(reversed)
	if !slices.Equal(taskIDs(SortTasksStable(reversed)), taskIDs(once)) {
		t.Fatalf("order depends on input order: %v vs %v", taskIDs(SortTasksStable(reversed)), taskIDs(once))
	}
}

func TestSortTasksStableTitleTieBreakIsDeterministic(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "c", Title: "charlie", Revenue: Amount(20), TimeTaken: Amount(2), Priority: PriorityMedium}),
		mustTask(t, TaskInput{ID: "a", Title: "alpha", Revenue: Amount(20), TimeTaken: Amount(2), Priority: PriorityMedium}),
		mustTask(t, TaskInput{ID: "b", Title: "Bravo", Revenue: Amount(20), TimeTaken: Amount(2), Priority: PriorityMedium}),
	}
	want := []string{"a", "b", "c"}
	for i := 0; i < 5; i++ {
		if got := taskIDs(SortTasksStable(tasks)); !slices.Equal(got, want) {
			t.Fatalf("run %d: SortTasksStable() = %v, want %v", i, got, want)
		}
	}
}

func TestSortTasksStableUsesLocaleCollation(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "z", Title: "zebra"}),
		mustTask(t, TaskInput{ID: "e", Title: "Écrire"}),
		mustTask(t, TaskInput{ID: "a", Title: "apple"}),
	}
	got := taskIDs(SortTasksStableIn(language.French, tasks))
	want := []string{"a", "e", "z"}
	if !slices.Equal(got, want) {
		t.Fatalf("SortTasksStableIn(fr) = %v, want %v", got, want)
	}
}

func TestSortTasksStableUnknownPriorityRanksLast(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "unknown", Title: "a", Revenue: Amount(10), TimeTaken: Amount(1), Priority: "Someday"}),
		mustTask(t, TaskInput{ID: "empty", Title: "b", Revenue: Amount(10), TimeTaken: Amount(1)}),
		mustTask(t, TaskInput{ID: "low", Title: "c", Revenue: Amount(10), TimeTaken: Amount(1), Priority: PriorityLow}),
		mustTask(t, TaskInput{ID: "high", Title: "d", Revenue: Amount(10), TimeTaken: Amount(1), Priority: PriorityHigh}),
		mustTask(t, TaskInput{ID: "medium", Title: "e", Revenue: Amount(10), TimeTaken: Amount(1), Priority: PriorityMedium}),
	}
	got := taskIDs(SortTasksStable(tasks))
	want := []string{"high", "medium", "low", "unknown", "empty"}
	if !slices.Equal(got, want) {
		t.Fatalf("SortTasksStable() = %v, want %v", got, want)
	}
}

func TestComputeMetrics(t *testing.T) {
	if got := ComputeMetrics(nil); got != (Metrics{}) {
		t.Fatalf("ComputeMetrics(nil) = %#v, want zero metrics", got)
	}
	if got := ComputeMetrics([]DerivedTask{}); got.AverageROI != 0 || got.TotalRevenue != 0 || got.TotalTimeTaken != 0 {
		t.Fatalf("ComputeMetrics([]) = %#v, want zero metrics", got)
	}

	derived := []DerivedTask{
		{Task: Task{ID: "1", Title: "a", Revenue: Amount(100), TimeTaken: Amount(2)}, ROI: 10},
		{Task: Task{ID: "2", Title: "b", Revenue: Amount(50), TimeTaken: Amount(3)}, ROI: 20},
		{Task: Task{ID: "3", Title: "c", Revenue: nil, TimeTaken: Amount(5)}, ROI: 30},
	}
	got := ComputeMetrics(derived)
	if got.AverageROI != 20 {
		t.Fatalf("AverageROI = %v, want 20", got.AverageROI)
	}
	if got.TotalRevenue != 150 {
		t.Fatalf("TotalRevenue = %v, want 150", got.TotalRevenue)
	}
	if got.TotalTimeTaken != 10 {
		t.Fatalf("TotalTimeTaken = %v, want 10", got.TotalTimeTaken)
	}
}

func TestComputeMetricsReadsROIField(t *testing.T) {
	// ROI fields deliberately disagree with revenue/time; metrics must trust the field.
	derived := []DerivedTask{
		{Task: Task{ID: "1", Title: "a", Revenue: Amount(100), TimeTaken: Amount(1)}, ROI: 1},
		{Task: Task{ID: "2", Title: "b", Revenue: Amount(100), TimeTaken: Amount(1)}, ROI: 2},
	}
	if got := ComputeMetrics(derived).AverageROI; got != 1.5 {
		t.Fatalf("AverageROI = %v, want 1.5", got)
	}
}

func TestDerive(t *testing.T) {
	tasks := []Task{
		mustTask(t, TaskInput{ID: "a", Title: "A", Revenue: Amount(100), TimeTaken: Amount(4), Priority: PriorityHigh}),
		mustTask(t, TaskInput{ID: "b", Title: "B", Revenue: Amount(10), TimeTaken: Amount(4), Priority: PriorityHigh}),
	}
	derived, metrics := Derive(DefaultLocale, tasks)
	if len(derived) != 2 || derived[0].ID != "a" || derived[0].ROI != 25 || derived[1].ROI != 2.5 {
		t.Fatalf("unexpected derived view %#v", derived)
	}
	if metrics.AverageROI != 13.75 || metrics.TotalRevenue != 110 || metrics.TotalTimeTaken != 8 {
		t.Fatalf("unexpected metrics %#v", metrics)
	}
	*derived[0].Revenue = 1
	if *tasks[0].Revenue != 100 {
		t.Fatal("derived view aliases input amounts")
	}
}
