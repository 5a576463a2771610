package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed play.schema.json
var playSchemaSource string

const playSchemaURL = "play.schema.json"

var (
	schemaOnce sync.Once
	playSchema *jsonschema.Schema
	schemaErr  error
)

// RequestError reports a play request that does not match the schema or
// does not decode. Surfaces answer it as a client error.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return "invalid play request: " + e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// Schema returns the compiled play request schema.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(playSchemaURL, strings.NewReader(playSchemaSource)); err != nil {
			schemaErr = fmt.Errorf("load play schema: %w", err)
			return
		}
		playSchema, schemaErr = compiler.Compile(playSchemaURL)
	})
	return playSchema, schemaErr
}

// DecodeRequest validates a JSON play request against the schema and decodes it.
func DecodeRequest(data []byte) (*Scenario, error) {
	schema, err := Schema()
	if err != nil {
		return nil, err
	}
	//1.- Validate the generic document first so every violation is reported by path.
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, &RequestError{Err: flatten(verr)}
		}
		return nil, &RequestError{Err: err}
	}
	//2.- Then decode into the typed scenario.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, &RequestError{Err: err}
	}
	return &s, nil
}

// decodeDocument reads one JSON value with numbers kept as json.Number, the
// form the schema validator expects for integer and range checks.
func decodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after the play request")
	}
	return doc, nil
}

// flatten lists the leaf causes of a validation error, one per violated location.
func flatten(verr *jsonschema.ValidationError) error {
	var problems []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			problems = append(problems, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return errors.New(strings.Join(problems, "; "))
}
