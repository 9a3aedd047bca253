package tools

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ECSPlanIDs are the identifiers a plan refers to.
type ECSPlanIDs struct {
	Cluster string `json:"cluster"`
	TaskDef string `json:"taskdef"`
}

// ECSPlan is the detailed plan body.
type ECSPlan struct {
	Service string     `json:"service"`
	Image   string     `json:"image"`
	Checks  []string   `json:"checks"`
	IDs     ECSPlanIDs `json:"ids"`
}

// ECSPlanResult is returned by aws.ecs_plan. IDs and Plan are only set for
// the detailed response format.
type ECSPlanResult struct {
	Summary   string      `json:"summary"`
	NextSteps []string    `json:"next_steps"`
	IDs       *ECSPlanIDs `json:"ids,omitempty"`
	Plan      *ECSPlan    `json:"plan,omitempty"`
}

// PlanECSUpdate builds the canned plan for updating service to image.
func PlanECSUpdate(service, image, format string) (*ECSPlanResult, error) {
	if format == "" {
		format = ResponseFormatConcise
	}

	plan := &ECSPlan{
		Service: service,
		Image:   image,
		Checks:  []string{"health-ok"},
		IDs:     ECSPlanIDs{Cluster: "...", TaskDef: "..."},
	}
	nextSteps := []string{"call " + ToolNameECSApply + " with plan_id"}

	switch format {
	case ResponseFormatConcise:
		return &ECSPlanResult{
			Summary:   fmt.Sprintf("Update %s to %s. Health checks OK.", service, image),
			NextSteps: nextSteps,
		}, nil
	case ResponseFormatDetailed:
		ids := plan.IDs
		return &ECSPlanResult{
			Summary:   fmt.Sprintf("Update %s to %s", service, image),
			NextSteps: nextSteps,
			IDs:       &ids,
			Plan:      plan,
		}, nil
	default:
		return nil, fmt.Errorf("unknown response_format %q", format)
	}
}

// ECSPlanTool exposes PlanECSUpdate as a tool.
type ECSPlanTool struct {
	schema *openapi3.Schema
}

// NewECSPlanTool creates the aws.ecs_plan tool.
func NewECSPlanTool() *ECSPlanTool {
	service := openapi3.NewStringSchema().WithMinLength(1)
	service.Description = "ECS service to update"

	image := openapi3.NewStringSchema().WithMinLength(1)
	image.Description = "Container image to roll out"

	format := openapi3.NewStringSchema().
		WithEnum(ResponseFormatConcise, ResponseFormatDetailed).
		WithDefault(ResponseFormatConcise)
	format.Description = "concise omits ids and the plan body; request detailed only when ids are needed"

	schema := openapi3.NewObjectSchema().
		WithProperty("service", service).
		WithProperty("image", image).
		WithProperty("response_format", format).
		WithoutAdditionalProperties()
	schema.Required = []string{"service", "image"}

	return &ECSPlanTool{schema: schema}
}

func (t *ECSPlanTool) Name() string { return ToolNameECSPlan }

func (t *ECSPlanTool) Description() string {
	return "Plan an ECS service update to a new image. Returns a summary and next steps."
}

func (t *ECSPlanTool) Parameters() map[string]interface{} {
	return schemaToJSONSchema(t.schema)
}

func (t *ECSPlanTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	if err := ValidateParams(t.schema, params); err != nil {
		return NewErrorResult(err)
	}

	result, err := PlanECSUpdate(
		GetStringParam(params, "service", ""),
		GetStringParam(params, "image", ""),
		GetStringParam(params, "response_format", ResponseFormatConcise),
	)
	if err != nil {
		return NewErrorResult(err)
	}
	return &ToolResult{Result: result}
}
