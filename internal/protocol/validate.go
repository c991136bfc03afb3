package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

var schemaFiles = map[string]string{
	TypeHello:        "hello.schema.json",
	TypeWelcome:      "welcome.schema.json",
	TypePlaceStation: "place_station.schema.json",
	TypeResult:       "result.schema.json",
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range schemaFiles {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
				schemasErr = fmt.Errorf("%s: %w", name, err)
				return
			}
		}
		out := map[string]*jsonschema.Schema{}
		for typ, name := range schemaFiles {
			s, err := c.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("%s: %w", name, err)
				return
			}
			out[typ] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// Validate checks a raw message against the schema for its type.
func Validate(typ string, b []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[typ]
	if !ok {
		return fmt.Errorf("no schema for message type %q", typ)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

func DecodeHello(b []byte) (HelloMsg, error) {
	var m HelloMsg
	if err := Validate(TypeHello, b); err != nil {
		return m, err
	}
	err := json.Unmarshal(b, &m)
	return m, err
}

// DecodePlaceStation validates the message and assigns a request id when
// the client sent none. Flag names are resolved by CommandFlags.
func DecodePlaceStation(b []byte) (PlaceStationMsg, error) {
	var m PlaceStationMsg
	if err := Validate(TypePlaceStation, b); err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	if m.RequestID == "" {
		m.RequestID = uuid.NewString()
	}
	return m, nil
}
