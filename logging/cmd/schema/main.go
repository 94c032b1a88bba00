//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"bizarre-tabletop/server/logging"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "output path for the JSON schema")
	flag.Parse()

	if outPath == "" {
		log.Fatal("schema: missing -out path")
	}

	schema, err := buildSchema()
	if err != nil {
		log.Fatalf("schema: %v", err)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("schema: marshal: %v", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("schema: create output dir: %v", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("schema: write: %v", err)
	}
}

func buildSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	eventSchema := reflector.ReflectFromType(reflect.TypeOf(logging.Event{}))
	if eventSchema == nil {
		return nil, fmt.Errorf("failed to reflect event schema")
	}
	eventSchema.Version = ""
	eventSchema.Title = "Session Event"
	eventSchema.Description = "One record on the structured session event stream emitted by the JSON sink."
	return eventSchema, nil
}
