package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/xeipuuv/gojsonschema"
)

var (
	customerProperties = `
		"customerName":  {"type": "string", "maxLength": 200},
		"customerEmail": {"type": "string", "maxLength": 320},
		"customerPhone": {"type": "string", "maxLength": 32}`

	checkoutSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["productId", "customerName", "customerEmail", "customerPhone"],
		"properties": {
			"productId": {"type": "string", "minLength": 1, "maxLength": 64},` + customerProperties + `
		}
	}`)

	submitSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["customerName", "customerEmail", "customerPhone"],
		"properties": {` + customerProperties + `}
	}`)

	confirmSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"properties": {
			"transactionId": {"type": "string", "maxLength": 128}
		}
	}`)

	callbackSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status":        {"type": "string", "minLength": 1, "maxLength": 32},
			"transactionId": {"type": ["string", "number"]}
		}
	}`)
)

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// validateSchema checks body against schema and returns the failing fields,
// or an error when body is not JSON at all.
func validateSchema(schema gojsonschema.JSONLoader, body []byte) (map[string][]string, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	fields := make(map[string][]string)
	for _, e := range result.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				field = p
			}
		}
		fields[field] = append(fields[field], e.Description())
	}
	return fields, nil
}
