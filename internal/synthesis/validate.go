package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/playforge/api/internal/models"
)

const requestSchemaJSON = `{
	"type": "object",
	"required": ["prompt"],
	"properties": {
		"prompt": {"type": "string"}
	}
}`

var requestSchema = mustSchema(requestSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("synthesis: invalid request schema: %v", err))
	}
	return schema
}

// ParseRequest validates a raw request body. The body must be a JSON object
// whose "prompt" is a string that is not blank. The prompt is kept as sent.
func ParseRequest(raw []byte) (models.GenerationRequest, error) {
	result, err := requestSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return models.GenerationRequest{}, fmt.Errorf("%w: body is not JSON: %v", ErrInvalidRequest, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return models.GenerationRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, errs)
	}

	var req models.GenerationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.GenerationRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return models.GenerationRequest{}, fmt.Errorf("%w: prompt is blank", ErrInvalidRequest)
	}

	return req, nil
}
