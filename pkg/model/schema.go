package model

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/artifact.json
var schemaBytes []byte

var (
	schemaOnce   sync.Once
	schemaCached *jsonschema.Schema
)

// artifactSchema compiles the embedded artifact schema on first use.
// The schema ships with the binary, so failure to compile is a build
// defect, not a runtime condition.
func artifactSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			panic(fmt.Sprintf("embedded model schema does not parse: %v", err))
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			panic(fmt.Sprintf("embedded model schema rejected: %v", err))
		}

		s, err := c.Compile(schemaURL)
		if err != nil {
			panic(fmt.Sprintf("embedded model schema does not compile: %v", err))
		}
		schemaCached = s
	})
	return schemaCached
}
