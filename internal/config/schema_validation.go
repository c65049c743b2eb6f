package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Paintersrp/tasktide/schema"
)

const schemaResource = "https://github.com/Paintersrp/tasktide/schema/config.v1.json"

// compiledSchema is built once on first use.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaResource, bytes.NewReader(schema.ConfigV1Schema)); err != nil {
		return nil, fmt.Errorf("add config schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return compiled, nil
})

// validateAgainstSchema checks a decoded YAML document against the embedded
// schema. Each violation is reported on its own line as "field: message".
func validateAgainstSchema(doc map[string]any) error {
	compiled, err := compiledSchema()
	if err != nil {
		return err
	}
	instance, err := toJSONValue(doc)
	if err != nil {
		return fmt.Errorf("prepare config for schema validation: %w", err)
	}

	err = compiled.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return fmt.Errorf("schema validation failed:\n%s", strings.Join(violations(verr), "\n"))
}

// toJSONValue converts YAML decoded values into the JSON data model the
// validator expects; numbers stay exact through json.Number.
func toJSONValue(doc map[string]any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// violations flattens a validation error into sorted, de-duplicated lines.
// Wrapper entries that only announce failing subschemas are dropped.
func violations(verr *jsonschema.ValidationError) []string {
	seen := make(map[string]struct{})
	var lines []string
	for _, be := range verr.BasicOutput().Errors {
		msg := strings.TrimSpace(be.Error)
		if msg == "" || strings.HasPrefix(msg, "doesn't validate with") {
			continue
		}
		line := fmt.Sprintf("- %s: %s", fieldFromPointer(be.InstanceLocation), msg)
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, "- config: "+verr.Message)
	}
	sort.Strings(lines)
	return lines
}

// fieldFromPointer renders a JSON pointer such as /apps/saveCapable/0 as
// apps.saveCapable[0].
func fieldFromPointer(ptr string) string {
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if seg == "" {
			continue
		}
		seg = strings.NewReplacer("~1", "/", "~0", "~").Replace(seg)
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	if b.Len() == 0 {
		return "config"
	}
	return b.String()
}
