package toolexecutor

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// DefaultTimeout bounds a single tool call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputSize is the largest JSON-encoded output returned verbatim.
	DefaultMaxOutputSize = 64 * 1024
)

var schemaTypes = map[string]struct{}{
	"string": {}, "number": {}, "integer": {}, "boolean": {}, "object": {}, "array": {},
}

// registered is a tool plus its compiled parameter schema.
type registered struct {
	def    ToolDefinition
	doc    map[string]interface{}
	schema *gojsonschema.Schema
}

// ToolExecutor is a registry of tools that also runs them. Registration
// order is preserved for listing.
type ToolExecutor struct {
	mu            sync.RWMutex
	byName        map[string]*registered
	order         []string
	timeout       time.Duration
	maxOutputSize int
}

func New() *ToolExecutor {
	observability.EnsureRegistered()
	return &ToolExecutor{
		byName:        map[string]*registered{},
		timeout:       DefaultTimeout,
		maxOutputSize: DefaultMaxOutputSize,
	}
}

// SetTimeout changes the default per-call timeout. Non-positive values are ignored.
func (te *ToolExecutor) SetTimeout(d time.Duration) {
	if d > 0 {
		te.mu.Lock()
		te.timeout = d
		te.mu.Unlock()
	}
}

// SetMaxOutputSize changes the truncation threshold in bytes. Non-positive
// values are ignored.
func (te *ToolExecutor) SetMaxOutputSize(n int) {
	if n > 0 {
		te.mu.Lock()
		te.maxOutputSize = n
		te.mu.Unlock()
	}
}

// RegisterTool checks def, compiles its schema and adds it. Names are unique.
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := checkDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	doc := BuildInputSchema(def)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()
	if _, dup := te.byName[def.Name]; dup {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	te.byName[def.Name] = &registered{def: def, doc: doc, schema: schema}
	te.order = append(te.order, def.Name)

	log.Debug().Str("tool", def.Name).Int("params", len(def.Parameters)).Msg("Tool registered")
	return nil
}

func (te *ToolExecutor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()
	if _, ok := te.byName[name]; !ok {
		return
	}
	delete(te.byName, name)
	kept := te.order[:0]
	for _, n := range te.order {
		if n != name {
			kept = append(kept, n)
		}
	}
	te.order = kept
}

// GetTool returns a copy of the named definition, or nil.
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()
	if r, ok := te.byName[name]; ok {
		def := r.def
		return &def
	}
	return nil
}

// ListTools returns tool names in registration order.
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()
	return append([]string(nil), te.order...)
}

func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()
	return len(te.byName)
}

// Definitions returns every definition in registration order.
func (te *ToolExecutor) Definitions() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()
	defs := make([]ToolDefinition, len(te.order))
	for i, name := range te.order {
		defs[i] = te.byName[name].def
	}
	return defs
}

// InputSchema returns the JSON Schema document advertised for a tool.
func (te *ToolExecutor) InputSchema(name string) (map[string]interface{}, bool) {
	te.mu.RLock()
	defer te.mu.RUnlock()
	if r, ok := te.byName[name]; ok {
		return r.doc, true
	}
	return nil, false
}

func checkDefinition(def ToolDefinition) error {
	switch {
	case def.Name == "":
		return errors.New("tool name cannot be empty")
	case def.Description == "":
		return errors.New("tool description cannot be empty")
	case def.Handler == nil:
		return errors.New("tool handler cannot be nil")
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		if p.Name == "" {
			return errors.New("parameter name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %s", p.Name)
		}
		seen[p.Name] = true

		if p.Description == "" {
			return fmt.Errorf("parameter %s: description cannot be empty", p.Name)
		}
		if _, ok := schemaTypes[p.Type]; !ok {
			return fmt.Errorf("parameter %s: invalid type %q", p.Name, p.Type)
		}
		if p.Pattern != "" {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				return fmt.Errorf("parameter %s: invalid pattern: %w", p.Name, err)
			}
		}
		if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
			return fmt.Errorf("parameter %s: minimum exceeds maximum", p.Name)
		}
	}
	return nil
}

// BuildInputSchema renders a tool's parameters as a closed JSON Schema
// object: unknown properties are rejected.
func BuildInputSchema(def ToolDefinition) map[string]interface{} {
	props := make(map[string]interface{}, len(def.Parameters))
	var required []string

	for _, p := range def.Parameters {
		prop := map[string]interface{}{"type": p.Type, "description": p.Description}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			values := make([]interface{}, len(p.Enum))
			for i, v := range p.Enum {
				values[i] = v
			}
			prop["enum"] = values
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		if p.Pattern != "" {
			prop["pattern"] = p.Pattern
		}
		props[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}
