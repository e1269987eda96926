package middleware

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	contextutils "voxbridge/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed swagger.yaml
var swaggerSpec []byte

// SwaggerSpec returns the embedded OpenAPI document
func SwaggerSpec() []byte {
	return swaggerSpec
}

// SchemaLoader compiles the component schemas of an OpenAPI document and indexes
// the request body schema of every documented operation
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
	paths   map[string]interface{}
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
		paths:   make(map[string]interface{}),
	}
}

var (
	defaultLoader     *SchemaLoader
	defaultLoaderErr  error
	defaultLoaderOnce sync.Once
)

// DefaultSchemaLoader returns the loader for the embedded document, parsed once
func DefaultSchemaLoader() (*SchemaLoader, error) {
	defaultLoaderOnce.Do(func() {
		loader := NewSchemaLoader()
		if err := loader.LoadSchemasFromSwagger(swaggerSpec); err != nil {
			defaultLoaderErr = err
			return
		}
		defaultLoader = loader
	})
	return defaultLoader, defaultLoaderErr
}

// LoadSchemasFromSwagger parses a YAML OpenAPI document and compiles its component schemas
func (sl *SchemaLoader) LoadSchemasFromSwagger(data []byte) error {
	var swagger map[string]interface{}
	if err := yaml.Unmarshal(data, &swagger); err != nil {
		return contextutils.WrapError(err, "failed to parse swagger document as YAML")
	}

	if paths, ok := swagger["paths"].(map[string]interface{}); ok {
		sl.paths = paths
	}

	components, ok := swagger["components"].(map[string]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no components section found in swagger")
	}
	schemas, ok := components["schemas"].(map[string]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no schemas section found in swagger")
	}

	jsonCompatibleSchemas := make(map[string]interface{}, len(schemas))
	for name, schemaData := range schemas {
		converted, err := convertToJSONCompatible(schemaData)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to convert schema %s", name)
		}
		jsonCompatibleSchemas[name] = converted
	}

	for name := range jsonCompatibleSchemas {
		// The full component set travels with each schema so $ref resolves
		doc := map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"components": map[string]interface{}{
				"schemas": jsonCompatibleSchemas,
			},
			"$ref": "#/components/schemas/" + name,
		}

		schemaBytes, err := json.Marshal(doc)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to load schema %s", name)
		}
		sl.schemas[name] = schema
	}

	return nil
}

// convertToJSONCompatible rewrites OpenAPI "nullable" into JSON Schema unions
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		hasNullable := false

		for key, val := range v {
			if key == "nullable" {
				if nullable, ok := val.(bool); ok && nullable {
					hasNullable = true
				}
				continue
			}

			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[key] = converted
		}

		if hasNullable {
			if ref, hasRef := result["$ref"].(string); hasRef {
				result["oneOf"] = []interface{}{
					map[string]interface{}{"$ref": ref},
					map[string]interface{}{"enum": []interface{}{nil}},
				}
				delete(result, "$ref")
			} else if typeVal, hasType := result["type"].(string); hasType {
				result["type"] = []interface{}{typeVal, "null"}
			}
		}

		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	case map[interface{}]interface{}:
		return nil, contextutils.ErrorWithContextf("non-string key in schema: %v", v)
	default:
		return data, nil
	}
}

// HasSchema reports whether a component schema was compiled
func (sl *SchemaLoader) HasSchema(name string) bool {
	_, ok := sl.schemas[name]
	return ok
}

// ValidateData validates data against a named component schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return contextutils.WrapError(err, "validation error")
	}

	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityWarn,
			"Request data does not match the API specification", strings.Join(validationErrors, "; "))
	}

	return nil
}

// IsEndpointDocumented checks if a path (literal or gin pattern) and method appear in the document
func (sl *SchemaLoader) IsEndpointDocumented(path, method string) bool {
	_, ok := sl.operation(path, method)
	return ok
}

// DetermineRequestSchemaFromPath returns the component name of the JSON request body, or ""
func (sl *SchemaLoader) DetermineRequestSchemaFromPath(path, method string) string {
	op, ok := sl.operation(path, method)
	if !ok {
		return ""
	}

	ref, _ := lookup(op, "requestBody", "content", "application/json", "schema", "$ref").(string)
	const prefix = "#/components/schemas/"
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	return strings.TrimPrefix(ref, prefix)
}

func (sl *SchemaLoader) operation(path, method string) (map[string]interface{}, bool) {
	method = strings.ToLower(method)

	if item, ok := sl.paths[path].(map[string]interface{}); ok {
		if op, ok := item[method].(map[string]interface{}); ok {
			return op, true
		}
	}

	for swaggerPath, pathInfo := range sl.paths {
		if !pathMatchesPattern(path, swaggerPath) {
			continue
		}
		item, ok := pathInfo.(map[string]interface{})
		if !ok {
			continue
		}
		if op, ok := item[method].(map[string]interface{}); ok {
			return op, true
		}
	}
	return nil, false
}

func lookup(node interface{}, keys ...string) interface{} {
	for _, key := range keys {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[key]
	}
	return node
}

// pathMatchesPattern matches a request path against a swagger path with {param} segments.
// gin-style :param segments in the request path match any swagger parameter.
func pathMatchesPattern(requestPath, swaggerPath string) bool {
	requestSegments := strings.Split(requestPath, "/")
	swaggerSegments := strings.Split(swaggerPath, "/")

	if len(requestSegments) != len(swaggerSegments) {
		return false
	}

	for i, swaggerSegment := range swaggerSegments {
		if strings.HasPrefix(swaggerSegment, "{") && strings.HasSuffix(swaggerSegment, "}") {
			continue
		}
		if swaggerSegment != requestSegments[i] {
			return false
		}
	}

	return true
}
