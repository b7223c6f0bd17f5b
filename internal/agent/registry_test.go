package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-agent/internal/agent"
)

type searchArgs struct {
	FilterType string `json:"filter_type" jsonschema:"enum=ingredient,enum=category,enum=all" jsonschema_description:"Type of search"`
	Query      string `json:"query,omitempty" jsonschema_description:"Search query, not needed for all"`
	Limit      int    `json:"limit,omitempty"`
}

func bytesReader(s string) io.Reader { return strings.NewReader(s) }

func TestNewTool_ReflectsParameterSchema(t *testing.T) {
	tool, err := agent.NewTool("search_medications", "Search the catalog", func(context.Context, searchArgs) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	params := tool.Parameters
	assert.Equal(t, "object", params["type"])
	assert.NotContains(t, params, "$schema")
	assert.Equal(t, []any{"filter_type"}, params["required"])

	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	filter := props["filter_type"].(map[string]any)
	assert.Equal(t, "string", filter["type"])
	assert.Equal(t, []any{"ingredient", "category", "all"}, filter["enum"])
	assert.Equal(t, "Type of search", filter["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
}

func TestNewTool_SchemaAcceptsValidArguments(t *testing.T) {
	tool, err := agent.NewTool("search_medications", "Search the catalog", func(context.Context, searchArgs) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	c := jsonschema.NewCompiler()
	require.NoError(t, c.AddResource("search_medications.json", tool.Parameters))
	schema, err := c.Compile("search_medications.json")
	require.NoError(t, err)

	valid, err := jsonschema.UnmarshalJSON(bytesReader(`{"filter_type":"category","query":"pain_relief"}`))
	require.NoError(t, err)
	assert.NoError(t, schema.Validate(valid))

	invalid, err := jsonschema.UnmarshalJSON(bytesReader(`{"filter_type":"brand"}`))
	require.NoError(t, err)
	assert.Error(t, schema.Validate(invalid))
}

func TestNewTool_DecodesTypedArguments(t *testing.T) {
	var got searchArgs
	tool, err := agent.NewTool("search_medications", "", func(_ context.Context, a searchArgs) (any, error) {
		got = a
		return map[string]bool{"success": true}, nil
	})
	require.NoError(t, err)
	reg := mustRegistry(t, tool)

	var events []agent.Event
	_, err = agent.Dispatch(t.Context(), reg, []agent.ToolCall{{
		ID: "c1", Name: "search_medications", Arguments: `{"filter_type":"ingredient","query":"ibuprofen"}`,
	}}, nil, collectInto(&events))
	require.NoError(t, err)
	assert.Equal(t, searchArgs{FilterType: "ingredient", Query: "ibuprofen"}, got)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := agent.NewRegistry(echoTool(t), echoTool(t))
	assert.ErrorIs(t, err, agent.ErrDuplicateTool)
}

func TestRegistry_DefinitionsKeepRegistrationOrder(t *testing.T) {
	reg := mustRegistry(t, failingTool(), echoTool(t), panicTool())

	var names []string
	for _, d := range reg.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"fail", "get_medication_by_name", "explode"}, names)
	assert.Equal(t, names, reg.Names())

	_, ok := reg.Lookup("explode")
	assert.True(t, ok)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_NilIsEmpty(t *testing.T) {
	var reg *agent.Registry
	assert.Nil(t, reg.Definitions())
	_, ok := reg.Lookup("anything")
	assert.False(t, ok)
}

func TestToolCall_WireShape(t *testing.T) {
	call := agent.ToolCall{ID: "call_1", Name: "check_medication_stock", Arguments: `{"medication_name":"Advil"}`}
	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"call_1","type":"function","function":{"name":"check_medication_stock","arguments":"{\"medication_name\":\"Advil\"}"}}`, string(data))

	var back agent.ToolCall
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, call, back)
}
