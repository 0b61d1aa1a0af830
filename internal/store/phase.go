package store

import (
	"context"
	"fmt"
	"sort"
)

// PhaseStatus counts the tasks of one phase by status. A phase with no
// tasks reports zero progress rather than an error.
func (s *Store) PhaseStatus(ctx context.Context, phase int) (PhaseStatus, error) {
	rows, err := s.query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE phase = ? GROUP BY status`, phase,
	)
	if err != nil {
		return PhaseStatus{}, s.classify("phase status", err)
	}
	defer rows.Close()

	counts := map[TaskStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return PhaseStatus{}, fmt.Errorf("scan phase status: %w", err)
		}
		counts[TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return PhaseStatus{}, s.classify("phase status", err)
	}
	return phaseFromCounts(phase, counts), nil
}

// Progress summarizes every phase that has at least one task.
func (s *Store) Progress(ctx context.Context) ([]PhaseStatus, error) {
	tasks, err := s.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	return SummarizePhases(tasks), nil
}

// SummarizePhases groups a task snapshot by phase and status.
// The result is ordered by phase.
func SummarizePhases(tasks []Task) []PhaseStatus {
	byPhase := map[int]map[TaskStatus]int{}
	for _, t := range tasks {
		counts, ok := byPhase[t.Phase]
		if !ok {
			counts = map[TaskStatus]int{}
			byPhase[t.Phase] = counts
		}
		counts[t.Status]++
	}

	out := make([]PhaseStatus, 0, len(byPhase))
	for phase, counts := range byPhase {
		out = append(out, phaseFromCounts(phase, counts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phase < out[j].Phase })
	return out
}

func phaseFromCounts(phase int, counts map[TaskStatus]int) PhaseStatus {
	total := 0
	for _, n := range counts {
		total += n
	}
	completed := counts[StatusCompleted]
	return PhaseStatus{
		Phase:      phase,
		TotalTasks: total,
		Completed:  completed,
		InProgress: counts[StatusInProgress],
		Pending:    counts[StatusPending],
		Review:     counts[StatusReview],
		Blocked:    counts[StatusBlocked],
		Progress:   FormatProgress(completed, total),
	}
}

// ProgressPercent returns completed/total*100, or 0 when total is 0.
func ProgressPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// FormatProgress renders completion as a percentage with one decimal,
// e.g. "66.7%".
func FormatProgress(completed, total int) string {
	return fmt.Sprintf("%.1f%%", ProgressPercent(completed, total))
}
