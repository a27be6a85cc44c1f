package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var statusRank = map[TaskStatus]int{
	TaskStatusPending:   0,
	TaskStatusRunning:   1,
	TaskStatusCompleted: 2,
	TaskStatusFailed:    2,
}

var allStatuses = []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed}

func genStatus() gopter.Gen {
	return gen.IntRange(0, len(allStatuses)-1).Map(func(i int) TaskStatus { return allStatuses[i] })
}

var kindSpellings = []string{"integration", "tracked_keyword", "competitor", "INTEGRATION", " Competitor"}

func TestTaskStatusProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("allowed transitions never move backwards", prop.ForAll(
		func(from, to TaskStatus) bool {
			if !from.CanTransitionTo(to) {
				return true
			}
			return statusRank[to] >= statusRank[from]
		},
		genStatus(),
		genStatus(),
	))

	properties.Property("terminal statuses accept nothing", prop.ForAll(
		func(from, to TaskStatus) bool {
			return !from.IsTerminal() || !from.CanTransitionTo(to)
		},
		genStatus(),
		genStatus(),
	))

	properties.Property("any walk of allowed steps stays monotonic", prop.ForAll(
		func(steps []TaskStatus) bool {
			current := TaskStatusPending
			for _, next := range steps {
				if !current.CanTransitionTo(next) {
					continue
				}
				if statusRank[next] < statusRank[current] {
					return false
				}
				current = next
			}
			return true
		},
		gen.SliceOf(genStatus()),
	))

	properties.TestingRun(t)
}

func TestParseResourceKindProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsed kinds round-trip through their string form", prop.ForAll(
		func(s string) bool {
			kind, ok := ParseResourceKind(s)
			if !ok {
				return kind == ""
			}
			again, ok := ParseResourceKind(string(kind))
			return ok && again == kind
		},
		gen.OneGenOf(
			gen.AnyString(),
			gen.IntRange(0, len(kindSpellings)-1).Map(func(i int) string { return kindSpellings[i] }),
		),
	))

	properties.TestingRun(t)
}
