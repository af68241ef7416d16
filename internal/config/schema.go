package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind selects which embedded schema a document is validated against.
type Kind int

const (
	GlobalConfig Kind = iota + 1
	ProcessingContext
	Mapping
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchema(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	// "schemas://config.schema.json" parses with the file name as the host.
	return schemaFiles.Open("schemas/" + u.Host + u.Path)
}

func init() {
	jsonschema.Loaders["schemas"] = loadSchema
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func compileAll() {
	compiled = make(map[Kind]*jsonschema.Schema, 3)
	specs := map[Kind]string{
		GlobalConfig:      "schemas://config.schema.json",
		ProcessingContext: "schemas://processing-context.schema.json",
		Mapping:           "schemas://mapping.schema.json",
	}
	for k, url := range specs {
		s, err := jsonschema.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("config: compile schema %s: %w", url, err)
			return
		}
		compiled[k] = s
	}
}

// Validate decodes r as JSON and validates it against the schema for k.
func Validate(k Kind, r io.Reader) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[k]
	if !ok {
		return fmt.Errorf("config: unknown schema kind %d", k)
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("config: decode document: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}
