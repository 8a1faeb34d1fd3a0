package json

import (
	"strings"
	"testing"
)

type TestStruct struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestPureJSON(t *testing.T) {
	response := `{"name": "test", "value": 42}`
	result, err := ExtractJSONFromResponse[TestStruct](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", result.Name)
	}
	if result.Value != 42 {
		t.Errorf("expected value 42, got %d", result.Value)
	}
}

func TestJSONWithPrefix(t *testing.T) {
	response := `Here is the result: {"name": "test", "value": 42}`
	result, err := ExtractJSONFromResponse[TestStruct](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", result.Name)
	}
}

func TestJSONWithCodeFence(t *testing.T) {
	response := "```json\n{\"name\": \"test\", \"value\": 42}\n```"
	result, err := ExtractJSONFromResponse[TestStruct](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", result.Name)
	}
	if result.Value != 42 {
		t.Errorf("expected value 42, got %d", result.Value)
	}
}

func TestArrayResponse(t *testing.T) {
	response := `[{"name": "a", "value": 1}, {"name": "b", "value": 2}]`
	result, err := ExtractJSONFromResponse[[]TestStruct](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(result))
	}
	if result[1].Name != "b" {
		t.Errorf("expected name 'b', got '%s'", result[1].Name)
	}
}

func TestArrayEmbeddedInText(t *testing.T) {
	response := "Here is the plan:\n```json\n[{\"name\": \"a\", \"value\": 1}]\n```\nDone."
	result, err := ExtractJSONFromResponse[[]TestStruct](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 element, got %d", len(result))
	}
}

func TestEmptyArray(t *testing.T) {
	result, err := ExtractJSONFromResponse[[]TestStruct]("[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty slice, got %d elements", len(result))
	}
}

func TestNoJSON(t *testing.T) {
	response := "This is just plain text without any JSON."
	_, err := ExtractJSONFromResponse[TestStruct](response)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to extract valid JSON") {
		t.Errorf("expected 'failed to extract valid JSON' in error, got: %v", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	response := `{"name": "test", value: }`
	_, err := ExtractJSONFromResponse[TestStruct](response)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
