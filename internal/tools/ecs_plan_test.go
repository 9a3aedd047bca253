package tools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultKeys(t *testing.T, v interface{}) []string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestPlanECSUpdateConcise(t *testing.T) {
	result, err := PlanECSUpdate("web", "v2", ResponseFormatConcise)
	require.NoError(t, err)

	assert.Equal(t, []string{"next_steps", "summary"}, resultKeys(t, result))
	assert.Equal(t, "Update web to v2. Health checks OK.", result.Summary)
	assert.Equal(t, []string{"call aws.ecs_apply with plan_id"}, result.NextSteps)
}

func TestPlanECSUpdateDefaultsToConcise(t *testing.T) {
	result, err := PlanECSUpdate("web", "v2", "")
	require.NoError(t, err)
	assert.Nil(t, result.Plan)
	assert.Nil(t, result.IDs)
}

func TestPlanECSUpdateDetailed(t *testing.T) {
	result, err := PlanECSUpdate("web", "v2", ResponseFormatDetailed)
	require.NoError(t, err)

	assert.Equal(t, []string{"ids", "next_steps", "plan", "summary"}, resultKeys(t, result))
	assert.Equal(t, "Update web to v2", result.Summary)
	assert.Equal(t, ECSPlanIDs{Cluster: "...", TaskDef: "..."}, *result.IDs)
	assert.Equal(t, "web", result.Plan.Service)
	assert.Equal(t, "v2", result.Plan.Image)
	assert.Equal(t, []string{"health-ok"}, result.Plan.Checks)
	assert.Equal(t, *result.IDs, result.Plan.IDs)
}

func TestPlanECSUpdateRejectsUnknownFormat(t *testing.T) {
	_, err := PlanECSUpdate("web", "v2", "verbose")
	assert.Error(t, err)
}

func TestECSPlanToolExecute(t *testing.T) {
	tool := NewECSPlanTool()
	ctx := context.Background()

	res := tool.Execute(ctx, map[string]interface{}{"service": "web", "image": "v2"})
	require.Empty(t, res.Error)
	assert.Equal(t, "Update web to v2. Health checks OK.", res.Result.(*ECSPlanResult).Summary)

	res = tool.Execute(ctx, map[string]interface{}{"service": "web", "image": "v2", "response_format": "detailed"})
	require.Empty(t, res.Error)
	assert.NotNil(t, res.Result.(*ECSPlanResult).Plan)
}

func TestECSPlanToolValidation(t *testing.T) {
	tool := NewECSPlanTool()
	ctx := context.Background()

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"missing image", map[string]interface{}{"service": "web"}},
		{"empty service", map[string]interface{}{"service": "", "image": "v2"}},
		{"wrong type", map[string]interface{}{"service": 3.0, "image": "v2"}},
		{"bad format", map[string]interface{}{"service": "web", "image": "v2", "response_format": "verbose"}},
		{"unknown key", map[string]interface{}{"service": "web", "image": "v2", "region": "eu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Execute(ctx, tt.params)
			assert.NotEmpty(t, res.Error)
			assert.Nil(t, res.Result)
		})
	}
}

func TestECSPlanToolParameters(t *testing.T) {
	params := NewECSPlanTool().Parameters()

	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"image", "service"}, params["required"])
	assert.Equal(t, false, params["additionalProperties"])

	props := params["properties"].(map[string]interface{})
	format := props["response_format"].(map[string]interface{})
	assert.Equal(t, "concise", format["default"])
	assert.ElementsMatch(t, []interface{}{"concise", "detailed"}, format["enum"])
}
