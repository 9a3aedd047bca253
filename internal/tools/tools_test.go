package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{ name string }

func (e *echoTool) Name() string                       { return e.name }
func (e *echoTool) Description() string                { return "echo" }
func (e *echoTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (e *echoTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	return &ToolResult{Result: params["value"]}
}

type nilTool struct{ echoTool }

func (n *nilTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	return nil
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{name: "test.echo"})

	res := r.Execute(context.Background(), &ToolCall{ID: "c1", Name: "test.echo", Parameters: map[string]interface{}{"value": "hi"}})
	assert.Equal(t, "c1", res.ID)
	assert.Equal(t, "hi", res.Result)
	assert.Empty(t, res.Error)

	res = r.Execute(context.Background(), &ToolCall{ID: "c2", Name: "test.echo"})
	assert.Nil(t, res.Result)
	assert.Empty(t, res.Error)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	res := NewRegistry().Execute(context.Background(), &ToolCall{ID: "c1", Name: "missing"})
	assert.Equal(t, "c1", res.ID)
	assert.Equal(t, "tool not found: missing", res.Error)
}

func TestRegistryExecuteNilResult(t *testing.T) {
	r := NewRegistry()
	r.Register(&nilTool{echoTool{name: "test.nil"}})

	res := r.Execute(context.Background(), &ToolCall{ID: "c1", Name: "test.nil"})
	assert.Equal(t, "tool returned nil result", res.Error)
}

func TestRegistryListSpecs(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(&echoTool{name: "test.b"})
	r.Register(&echoTool{name: "test.a"})

	var names []string
	for _, spec := range r.ListSpecs() {
		names = append(names, spec.Name())
	}
	assert.Equal(t, []string{ToolNameECSPlan, "test.a", "test.b"}, names)

	schemas := r.ToJSONSchema()
	require.Len(t, schemas, 3)
	fn := schemas[0]["function"].(map[string]interface{})
	assert.Equal(t, ToolNameECSPlan, fn["name"])

	r.Register(&echoTool{name: "test.a"})
	assert.Len(t, r.ListSpecs(), 3)
}

func TestParseCall(t *testing.T) {
	call, err := ParseCall(ToolNameECSPlan, []byte(`{"service":"web","image":"v2"}`))
	require.NoError(t, err)
	assert.Equal(t, "web", call.Parameters["service"])

	call, err = ParseCall(ToolNameECSPlan, nil)
	require.NoError(t, err)
	assert.Empty(t, call.Parameters)

	_, err = ParseCall(ToolNameECSPlan, []byte(`[1]`))
	assert.Error(t, err)
}
