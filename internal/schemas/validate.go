// Package schemas embeds the JSON Schemas for LLM output and validates
// documents against them.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.json
var schemaFiles embed.FS

// Embedded schema names.
const (
	CoverLetter         = "cover_letter.json"
	CoverLetterEnvelope = "cover_letter_envelope.json"
)

// Violation is one failed constraint. Path is "(root)" for the document
// itself.
type Violation struct {
	Path   string
	Reason string
}

// DocumentError lists every constraint a document broke.
type DocumentError struct {
	Schema     string
	Violations []Violation
}

func (e *DocumentError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Path + ": " + v.Reason
	}
	return fmt.Sprintf("document does not match %s: %s", e.Schema, strings.Join(parts, "; "))
}

// SchemaError means a schema could not be read or compiled.
type SchemaError struct {
	Name string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Name, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Raw returns the bytes of an embedded schema.
func Raw(name string) ([]byte, error) {
	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, &SchemaError{Name: name, Err: err}
	}
	return data, nil
}

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

func schema(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	data, err := Raw(name)
	if err != nil {
		return nil, err
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaError{Name: name, Err: err}
	}
	compiled[name] = s
	return s, nil
}

// Validate checks the JSON document against the embedded schema name. A
// document that parses but breaks the schema yields a *DocumentError.
func Validate(name string, document []byte) error {
	s, err := schema(name)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	docErr := &DocumentError{Schema: name}
	for _, re := range result.Errors() {
		path := re.Field()
		if path == "" {
			path = "(root)"
		}
		docErr.Violations = append(docErr.Violations, Violation{Path: path, Reason: re.Description()})
	}
	return docErr
}
