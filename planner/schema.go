package planner

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// planSchemaJSON is the structural contract for raw planner output: a
// non-empty array of step objects, each naming an action. Field-level repair
// (vocabulary, priority) happens afterwards in Validate.
const planSchemaJSON = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["action"],
    "properties": {
      "step": {"type": "integer"},
      "action": {"type": "string"},
      "priority": {"type": "string"},
      "parameters": {},
      "reasoning": {"type": "string"}
    }
  }
}`

var planSchema = mustCompilePlanSchema()

func mustCompilePlanSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(planSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile plan schema: %v", err))
	}
	return schema
}

// checkPlanShape rejects plans that are not a non-empty array of step
// objects. A rejection here triggers the fallback plan.
func checkPlanShape(data []byte) error {
	result := planSchema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("plan failed schema validation: %v", result.Errors)
}
