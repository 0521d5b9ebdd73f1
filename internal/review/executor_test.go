package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordStage(name string, order *[]string, fn func(RunContext) RunContext) Stage {
	return StageFunc{StageName: name, Fn: func(_ context.Context, rc RunContext) (RunContext, error) {
		*order = append(*order, name)
		if fn != nil {
			rc = fn(rc)
		}
		return rc, nil
	}}
}

func TestExecutorRunsStagesInOrder(t *testing.T) {
	var order []string
	exec := NewExecutor([]Stage{
		recordStage("a", &order, nil),
		recordStage("b", &order, nil),
	}, recordStage("final", &order, func(rc RunContext) RunContext {
		return rc.WithStatus(StatusCompleted, "", "")
	}), time.Minute, discardLogger())

	rc := exec.Execute(context.Background(), baseContext())
	require.Equal(t, []string{"a", "b", "final"}, order)
	require.Equal(t, StatusCompleted, rc.Status.Status)
}

func TestExecutorStopsOnTerminalStatusButFinalizes(t *testing.T) {
	var order []string
	exec := NewExecutor([]Stage{
		recordStage("a", &order, func(rc RunContext) RunContext { return rc.Skip(ReasonUserIgnored, "ignored") }),
		recordStage("b", &order, nil),
	}, recordStage("final", &order, nil), time.Minute, discardLogger())

	rc := exec.Execute(context.Background(), baseContext())
	require.Equal(t, []string{"a", "final"}, order)
	require.Equal(t, StatusSkipped, rc.Status.Status)
	require.Equal(t, ReasonUserIgnored, rc.Status.Reason)
}

func TestExecutorMapsErrorsToFailed(t *testing.T) {
	var order []string
	failing := StageFunc{StageName: "boom", Fn: func(_ context.Context, rc RunContext) (RunContext, error) {
		return rc, errors.New("upstream down")
	}}
	exec := NewExecutor([]Stage{failing, recordStage("after", &order, nil)},
		recordStage("final", &order, nil), time.Minute, discardLogger())

	rc := exec.Execute(context.Background(), baseContext())
	require.Equal(t, StatusFailed, rc.Status.Status)
	require.Equal(t, ReasonStageError, rc.Status.Reason)
	require.Contains(t, rc.Status.Message, "upstream down")
	require.Equal(t, []string{"final"}, order)
}

func TestExecutorRecoversPanics(t *testing.T) {
	var order []string
	panicking := StageFunc{StageName: "panic", Fn: func(context.Context, RunContext) (RunContext, error) {
		var m map[string]int
		m["x"] = 1
		return RunContext{}, nil
	}}
	exec := NewExecutor([]Stage{panicking}, recordStage("final", &order, nil), time.Minute, discardLogger())

	rc := exec.Execute(context.Background(), baseContext())
	require.Equal(t, StatusFailed, rc.Status.Status)
	require.Equal(t, ReasonStagePanic, rc.Status.Reason)
	require.Equal(t, []string{"final"}, order)
	require.NotEqual(t, "", rc.Repository.ID, "context from before the panic is kept")
}

func TestExecutorTimeoutFailsWithoutWaitingForStage(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var finalized bool

	slow := StageFunc{StageName: "slow", Fn: func(_ context.Context, rc RunContext) (RunContext, error) {
		<-release
		return rc, nil
	}}
	final := StageFunc{StageName: "final", Fn: func(_ context.Context, rc RunContext) (RunContext, error) {
		finalized = true
		return rc, nil
	}}
	exec := NewExecutor([]Stage{slow}, final, 50*time.Millisecond, discardLogger())

	start := time.Now()
	rc := exec.Execute(context.Background(), baseContext())
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, StatusFailed, rc.Status.Status)
	require.Equal(t, ReasonTimeout, rc.Status.Reason)
	require.True(t, finalized)
}

func TestMetadataCopyOnWrite(t *testing.T) {
	first := baseContext().WithMeta(MetaForced, true)
	second := first.WithMeta(MetaNotificationHandled, true)

	require.False(t, first.Metadata.Bool(MetaNotificationHandled))
	require.True(t, second.Metadata.Bool(MetaNotificationHandled))
	require.True(t, second.Metadata.Bool(MetaForced))
}

func TestShowStatusFeedbackDefaultsTrue(t *testing.T) {
	rc := baseContext()
	require.True(t, rc.ShowStatusFeedback())
	require.False(t, rc.WithMeta(MetaShowStatusFeedback, false).ShowStatusFeedback())
}
