package tools

const (
	ToolNameECSPlan  = "aws.ecs_plan"
	ToolNameECSApply = "aws.ecs_apply"
)

// Response formats accepted by tools that support both.
const (
	ResponseFormatConcise  = "concise"
	ResponseFormatDetailed = "detailed"
)
