package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
	"github.com/rahul/autopilot/internal/report"
)

// ErrNoPlan is returned when the model answers without a usable plan.
var ErrNoPlan = errors.New("model returned no plan")

// maxResultsPrompt bounds the serialized results handed to the reporter.
const maxResultsPrompt = 20000

var environmentEnum = []string{string(plan.EnvBrowser), string(plan.EnvTerminal), string(plan.EnvFileSystem)}

var proposePlanTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        "propose_plan",
		Description: "Submit a structured execution plan: steps bound to environments, with their dependencies.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"environments": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string", "enum": environmentEnum},
				},
				"steps": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":          map[string]any{"type": "string"},
							"description": map[string]any{"type": "string"},
							"environment": map[string]any{"type": "string", "enum": environmentEnum},
							"action":      map[string]any{"type": "string"},
							"inputs":      map[string]any{"type": "object"},
							"dependsOn": map[string]any{
								"type":  "array",
								"items": map[string]any{"type": "string"},
							},
						},
						"required": []string{"id", "description", "environment", "action"},
					},
				},
			},
			"required": []string{"title", "description", "environments", "steps"},
		},
	},
}

var submitReportTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        "submit_report",
		Description: "Submit the final report of a completed task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":   map[string]any{"type": "string"},
				"summary": map[string]any{"type": "string"},
				"environments": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"data": map[string]any{"description": "Key findings or data extracted from the results."},
			},
			"required": []string{"title", "summary", "environments"},
		},
	},
}

// call sends one system+human exchange offering a single tool and returns
// the tool arguments if the model called it, else its text content.
func call(ctx context.Context, model llms.Model, system, human string, tool llms.Tool) (args, content string, err error) {
	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(human)}},
	}
	resp, err := model.GenerateContent(ctx, messages, llms.WithTools([]llms.Tool{tool}))
	if err != nil {
		return "", "", err
	}
	if len(resp.Choices) == 0 {
		return "", "", errors.New("model returned no choices")
	}
	choice := resp.Choices[0]
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name == tool.Function.Name {
			return tc.FunctionCall.Arguments, choice.Content, nil
		}
	}
	return "", choice.Content, nil
}

// jsonObject returns the outermost {...} span of s, for models that answer
// with inline JSON instead of a tool call.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Planner turns an instruction into a validated plan.
type Planner struct {
	Model   llms.Model
	Prompts *PromptManager
	// Catalog lists the actions each environment supports; it is appended to
	// the system prompt.
	Catalog map[plan.Environment][]string
	Logger  *observability.Logger
}

func NewPlanner(model llms.Model, prompts *PromptManager, catalog map[plan.Environment][]string, logger *observability.Logger) *Planner {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Planner{Model: model, Prompts: prompts, Catalog: catalog, Logger: logger}
}

func (p *Planner) systemPrompt() (string, error) {
	base, err := p.Prompts.Prompt(RolePlanner)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n## Available environments and actions:\n")
	for _, env := range plan.Environments {
		actions, ok := p.Catalog[env]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", env, strings.Join(actions, ", "))
	}
	return b.String(), nil
}

// Plan asks the model for a plan and validates it.
func (p *Planner) Plan(ctx context.Context, runID, instruction string) (*plan.TaskPlan, error) {
	system, err := p.systemPrompt()
	if err != nil {
		return nil, fmt.Errorf("failed to load planner prompt: %w", err)
	}
	human := fmt.Sprintf("Create a detailed execution plan for the following instruction: %q", instruction)

	args, content, err := call(ctx, p.Model, system, human, proposePlanTool)
	if err != nil {
		return nil, fmt.Errorf("planning error: %w", err)
	}
	p.Logger.LogLLM(runID, "plan", human, content, args)

	if args == "" {
		var ok bool
		if args, ok = jsonObject(content); !ok {
			return nil, ErrNoPlan
		}
	}

	tp, err := plan.Parse([]byte(args), plan.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse propose_plan arguments: %w", err)
	}
	if err := tp.Validate(); err != nil {
		return nil, err
	}
	return tp, nil
}

// Reporter turns a completed run into a report with the model.
type Reporter struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
}

func NewReporter(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Reporter {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Reporter{Model: model, Prompts: prompts, Logger: logger}
}

// Report asks the model for a report. A text answer becomes the summary of
// the deterministic report; the timestamp is always set locally.
func (r *Reporter) Report(ctx context.Context, runID string, p *plan.TaskPlan, results map[string]any) (*report.Report, error) {
	system, err := r.Prompts.Prompt(RoleReporter)
	if err != nil {
		return nil, fmt.Errorf("failed to load reporter prompt: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	encoded := string(data)
	if len(encoded) > maxResultsPrompt {
		encoded = encoded[:maxResultsPrompt] + "\n... (truncated)"
	}

	envs := make([]string, len(p.Environments))
	for i, e := range p.Environments {
		envs[i] = string(e)
	}
	human := fmt.Sprintf("Create a professional report for the completed task:\n\nTask Title: %s\nTask Description: %s\nEnvironments Used: %s\n\nExecution Results:\n%s",
		p.Title, p.Description, strings.Join(envs, ", "), encoded)

	args, content, err := call(ctx, r.Model, system, human, submitReportTool)
	if err != nil {
		return nil, fmt.Errorf("report generation error: %w", err)
	}
	r.Logger.LogLLM(runID, "report", p.Title, content, args)

	if args == "" {
		if strings.TrimSpace(content) == "" {
			return nil, errors.New("model returned an empty report")
		}
		rep := report.Summarize(p, results)
		rep.Summary = strings.TrimSpace(content)
		return rep, nil
	}

	var rep report.Report
	if err := json.Unmarshal([]byte(args), &rep); err != nil {
		return nil, fmt.Errorf("failed to parse submit_report arguments: %w", err)
	}
	if rep.Title == "" {
		rep.Title = p.Title
	}
	if len(rep.Environments) == 0 {
		rep.Environments = envs
	}
	if rep.Data == nil {
		rep.Data = results
	}
	rep.FilePath = ""
	rep.Timestamp = report.Timestamp(report.Now())
	return &rep, nil
}
