package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ToolHandler executes a tool with validated arguments
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*ToolResult, error)

// Tool is a callable exposed through tools/list and tools/call
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolHandler
}

type registeredTool struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// ToolRegistry holds tools and their compiled argument schemas
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// NewToolRegistry creates an empty tool registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*registeredTool),
	}
}

// Register compiles the tool's schema and adds it, replacing a tool of the same name
func (r *ToolRegistry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s: handler cannot be nil", tool.Name)
	}
	if tool.InputSchema == nil {
		tool.InputSchema = map[string]interface{}{"type": "object"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.InputSchema))
	if err != nil {
		return fmt.Errorf("tool %s: invalid input schema: %w", tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = &registeredTool{tool: tool, schema: schema}
	return nil
}

// List returns tool descriptors sorted by name
func (r *ToolRegistry) List() []toolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]toolDescriptor, 0, len(r.tools))
	for _, rt := range r.tools {
		descriptors = append(descriptors, toolDescriptor{
			Name:        rt.tool.Name,
			Description: rt.tool.Description,
			InputSchema: rt.tool.InputSchema,
		})
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Call validates args against the tool's schema and runs it.
// Handler failures become error results rather than protocol errors.
func (r *ToolRegistry) Call(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	r.mu.RLock()
	rt, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return nil, Errorf(InvalidParams, "Unknown tool: %s", name)
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArguments(rt.schema, args); err != nil {
		return nil, Errorf(InvalidParams, "Invalid arguments for tool %s: %v", name, err)
	}

	result, err := rt.tool.Handler(ctx, args)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	if result == nil {
		result = &ToolResult{Content: []Content{}}
	}
	return result, nil
}

func validateArguments(schema *gojsonschema.Schema, args map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return nil
}

// AddNumbersTool returns the add_numbers tool: the sum of a and b as text
func AddNumbersTool() Tool {
	return Tool{
		Name:        "add_numbers",
		Description: "Add two numbers",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"a": map[string]interface{}{"type": "number"},
				"b": map[string]interface{}{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (*ToolResult, error) {
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return TextResult(strconv.FormatFloat(a+b, 'f', -1, 64)), nil
		},
	}
}
