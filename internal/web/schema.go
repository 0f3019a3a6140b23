package web

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"approvalhub/internal/approvals"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	newApprovalSchemaOnce sync.Once
	newApprovalSchema     *gojsonschema.Schema
	newApprovalSchemaErr  error
)

var requiredIngestFields = []string{"request_source", "requester_name", "approver_id"}

func loadNewApprovalSchema() (*gojsonschema.Schema, error) {
	newApprovalSchemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schemas/new_approval.json")
		if err != nil {
			newApprovalSchemaErr = err
			return
		}
		newApprovalSchema, newApprovalSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return newApprovalSchema, newApprovalSchemaErr
}

// validateNewApproval checks doc against the ingest schema and returns the
// first failure as a *approvals.ValidationError. Missing required fields are
// reported before any other problem.
func validateNewApproval(doc map[string]any) error {
	schema, err := loadNewApprovalSchema()
	if err != nil {
		return fmt.Errorf("load ingest schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate ingest payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return errors.New("schema validation failed")
	}

	missing := map[string]bool{}
	var first *approvals.ValidationError
	for _, re := range result.Errors() {
		field, isMissing := describeSchemaError(re)
		if isMissing {
			missing[field] = true
			continue
		}
		if first == nil {
			first = &approvals.ValidationError{Field: field, Reason: re.Description()}
		}
	}
	for _, field := range requiredIngestFields {
		if missing[field] {
			return &approvals.ValidationError{Field: field}
		}
	}
	if first != nil {
		return first
	}
	return errors.New("schema validation failed")
}

func describeSchemaError(re gojsonschema.ResultError) (field string, missing bool) {
	field = re.Field()
	switch re.Type() {
	case "required":
		if prop, ok := re.Details()["property"].(string); ok {
			return prop, true
		}
	case "string_gte":
		for _, name := range requiredIngestFields {
			if field == name {
				return field, true
			}
		}
	}
	return field, false
}
