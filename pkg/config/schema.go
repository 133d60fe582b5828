package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	googleschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://sitebuild.dev/schemas/sitebuild.schema.json"

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// Schema returns the JSON schema of the configuration file, generated from
// the Config type.
func Schema() ([]byte, error) {
	schema, err := googleschema.For[Config](&googleschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate configuration schema: %w", err)
	}
	schema.ID = schemaURL
	schema.Title = "sitebuild configuration"
	return json.MarshalIndent(schema, "", "  ")
}

func getCompiledSchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		raw, err := Schema()
		if err != nil {
			compiledSchemaErr = err
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compiledSchemaErr = fmt.Errorf("failed to parse configuration schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			compiledSchemaErr = fmt.Errorf("failed to add configuration schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// ValidateYAML checks a YAML configuration document against the schema.
// Unknown keys and wrongly typed values are reported with their location.
func ValidateYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if instance == nil {
		return nil
	}

	schema, err := getCompiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return formatValidationError(data, err)
	}
	return nil
}

// formatValidationError names every failing location, with its line in
// data, ahead of the validator's own report.
func formatValidationError(data []byte, err error) error {
	vErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	var locations []string
	for _, v := range violations(data, vErr) {
		locations = append(locations, v.String())
	}
	return fmt.Errorf("schema validation failed at %s: %w", strings.Join(locations, ", "), err)
}
