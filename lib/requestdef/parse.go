// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package requestdef parses declarative request type definitions.
//
// Definitions are authored as JSONC files (JSON extended with
// comments and trailing commas), one type per file, in the directory
// named by paths.definitions. The typical flow:
//
//  1. LoadDir or ReadFile: JSONC bytes → Definition
//  2. Validate: structural checks (duration syntax, open states,
//     action targets)
//  3. Type and CustomEventTypes: Definition → request.Type and the custom
//     event types it declares
//
// Actions named after a built-in action kind keep the built-in
// precondition and effect (submit stamps expires_at, expire waits for
// it, delete soft-deletes); the definition overrides only where the
// action runs from, where it leads, and which event it emits. A null
// action removes the built-in action from the type.
package requestdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
)

// Extension is the file extension of definition files.
const Extension = ".jsonc"

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Definition.
func Parse(data []byte) (*Definition, error) {
	stripped := jsonc.ToJSON(data)

	var definition Definition
	if err := json.Unmarshal(stripped, &definition); err != nil {
		return nil, fmt.Errorf("parsing request type definition: %w", err)
	}
	return &definition, nil
}

// ReadFile reads and parses one definition file. A definition without
// a type_id takes its id from the file name.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if definition.TypeID == "" {
		definition.TypeID = NameFromPath(path)
	}
	return definition, nil
}

// LoadDir reads every definition file in dir, in file name order. A
// missing directory holds no definitions.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading definitions directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == Extension {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	definitions := make([]*Definition, 0, len(names))
	for _, name := range names {
		definition, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, definition)
	}
	return definitions, nil
}

// NameFromPath strips the directory and extension from path:
// "definitions/community-submission.jsonc" returns
// "community-submission".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
