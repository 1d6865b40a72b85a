package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
	"github.com/rahul/autopilot/internal/report"
	"github.com/rahul/autopilot/internal/scheduler"
	"github.com/rahul/autopilot/internal/store"
)

// PlanProducer turns an instruction into a plan.
type PlanProducer interface {
	Plan(ctx context.Context, runID, instruction string) (*plan.TaskPlan, error)
}

// ReportProducer turns a completed run into a report.
type ReportProducer interface {
	Report(ctx context.Context, runID string, p *plan.TaskPlan, results map[string]any) (*report.Report, error)
}

// RunRecorder persists run history. *store.RunStore implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, id, instruction string) error
	SetPlan(ctx context.Context, id, title string, plan any) error
	FinishRun(ctx context.Context, id string, status store.RunStatus, runErr error, report any) error
	AppendLogs(ctx context.Context, runID string, entries []store.LogEntry) error
}

// TaskExecutor is what the gateways and the job runner drive.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, instruction string, sink observability.Sink) (*report.Report, error)
}

// Orchestrator plans an instruction, runs the plan through the scheduler and
// reports on the result, tracking status and recording history.
type Orchestrator struct {
	Planner    PlanProducer
	Reporter   ReportProducer
	Dispatcher scheduler.Dispatcher
	Runs       RunRecorder
	Logger     *observability.Logger
	// ReportsDir receives a JSON copy of every report when set.
	ReportsDir string
}

// ErrNoPlanner is returned by ExecuteTask when no plan producer is configured.
var ErrNoPlanner = errors.New("no planner configured: an enabled model provider is required")

func (o *Orchestrator) logger() *observability.Logger {
	if o.Logger == nil {
		return observability.Discard()
	}
	return o.Logger
}

// ExecuteTask plans instruction with the model, runs the plan and reports.
func (o *Orchestrator) ExecuteTask(ctx context.Context, instruction string, sink observability.Sink) (*report.Report, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, errors.New("instruction is required")
	}
	if o.Planner == nil {
		return nil, ErrNoPlanner
	}

	r := o.begin(ctx, instruction, sink)
	defer r.end()

	observability.SetStatus(observability.RolePlanning, instruction)
	r.sink.Emit("Generating task plan...", observability.CategorySystem)
	p, err := o.Planner.Plan(r.ctx, r.id, instruction)
	if err != nil {
		r.sink.Emit("Planning failed: "+err.Error(), observability.CategoryError)
		return nil, r.finish(store.RunFailed, err, nil)
	}
	return o.execute(r, p)
}

// ExecutePlan runs an already built plan and reports.
func (o *Orchestrator) ExecutePlan(ctx context.Context, p *plan.TaskPlan, sink observability.Sink) (*report.Report, error) {
	if p == nil {
		return nil, errors.New("plan is required")
	}
	r := o.begin(ctx, p.Title, sink)
	defer r.end()
	return o.execute(r, p)
}

// run is the per-call state of ExecuteTask and ExecutePlan.
type run struct {
	o       *Orchestrator
	id      string
	ctx     context.Context
	sink    observability.Sink
	rec     *observability.Recorder
	started time.Time
	end     func()
}

func (o *Orchestrator) begin(ctx context.Context, instruction string, sink observability.Sink) *run {
	id := uuid.NewString()
	rec := observability.NewRecorder()
	lg := o.logger()
	ctx = observability.WithLogger(ctx, lg.Slog().With("run_id", id))

	r := &run{
		o:       o,
		id:      id,
		ctx:     ctx,
		sink:    observability.Tee(sink, rec, lg),
		rec:     rec,
		started: time.Now(),
		end:     observability.BeginRun(),
	}
	if o.Runs != nil {
		if err := o.Runs.CreateRun(context.WithoutCancel(ctx), id, instruction); err != nil {
			lg.Slog().Warn("Failed to record run.", "run_id", id, "error", err)
		}
	}
	return r
}

// finish records the outcome and returns runErr unchanged.
func (r *run) finish(status store.RunStatus, runErr error, rep *report.Report) error {
	lg := r.o.logger()
	lg.LogRun(r.id, string(status), time.Since(r.started), runErr)

	if r.o.Runs == nil {
		return runErr
	}
	ctx := context.WithoutCancel(r.ctx)
	entries := r.rec.Entries()
	logs := make([]store.LogEntry, len(entries))
	for i, e := range entries {
		logs[i] = store.LogEntry{Time: e.Time, Category: e.Category, Message: e.Message}
	}
	if err := r.o.Runs.AppendLogs(ctx, r.id, logs); err != nil {
		lg.Slog().Warn("Failed to record run logs.", "run_id", r.id, "error", err)
	}
	var repValue any
	if rep != nil {
		repValue = rep
	}
	if err := r.o.Runs.FinishRun(ctx, r.id, status, runErr, repValue); err != nil {
		lg.Slog().Warn("Failed to record run outcome.", "run_id", r.id, "error", err)
	}
	return runErr
}

func (o *Orchestrator) execute(r *run, p *plan.TaskPlan) (*report.Report, error) {
	lg := o.logger()
	envs := make([]string, len(p.Environments))
	for i, e := range p.Environments {
		envs[i] = string(e)
	}

	r.sink.Emit("Task plan created: "+p.Title, observability.CategorySystem)
	r.sink.Emit("Identified environments: "+strings.Join(envs, ", "), observability.CategorySystem)
	lg.LogPlan(r.id, p.Title, len(p.Steps), envs)
	if o.Runs != nil {
		if err := o.Runs.SetPlan(context.WithoutCancel(r.ctx), r.id, p.Title, p); err != nil {
			lg.Slog().Warn("Failed to record plan.", "run_id", r.id, "error", err)
		}
	}

	observability.SetStatus(observability.RoleExecuting, p.Title)
	sched := scheduler.New(o.Dispatcher, scheduler.WithObserver(&stepLogger{logger: lg, runID: r.id}))
	results, err := sched.Run(r.ctx, p, r.sink)
	if err != nil {
		status := store.RunFailed
		var incomplete *scheduler.IncompleteExecutionError
		if errors.As(err, &incomplete) {
			status = store.RunIncomplete
		}
		return nil, r.finish(status, err, nil)
	}

	observability.SetStatus(observability.RoleReporting, p.Title)
	r.sink.Emit("Generating final report...", observability.CategorySystem)
	rep, err := o.buildReport(r, p, results)
	if err != nil {
		return nil, r.finish(store.RunFailed, err, nil)
	}

	if o.ReportsDir != "" {
		if _, err := report.Save(o.ReportsDir, rep); err != nil {
			lg.Slog().Warn("Failed to save report.", "run_id", r.id, "error", err)
		} else {
			r.sink.Emit("Report saved to "+rep.FilePath, observability.CategorySystem)
		}
	}
	lg.LogReport(r.id, rep.Title, rep.FilePath)
	return rep, r.finish(store.RunSucceeded, nil, rep)
}

// buildReport uses the model reporter when present and falls back to the
// deterministic summary when it is absent or fails.
func (o *Orchestrator) buildReport(r *run, p *plan.TaskPlan, results scheduler.Results) (*report.Report, error) {
	if o.Reporter == nil {
		return report.Summarize(p, results), nil
	}
	rep, err := o.Reporter.Report(r.ctx, r.id, p, results)
	if err != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("report generation canceled: %w", ctxErr)
		}
		r.sink.Emit("Report generation failed, using summary: "+err.Error(), observability.CategoryError)
		return report.Summarize(p, results), nil
	}
	return rep, nil
}

// stepLogger writes a structured event for every step start and finish.
type stepLogger struct {
	logger *observability.Logger
	runID  string
}

func (s *stepLogger) StepStarted(step plan.Step) {
	s.logger.LogStep(s.runID, step.ID, string(step.Environment), step.Action, "started")
}

func (s *stepLogger) StepFinished(step plan.Step, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	s.logger.LogStep(s.runID, step.ID, string(step.Environment), step.Action, status)
}
