// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/joroec/pvmctl/internal/config"
	"github.com/joroec/pvmctl/internal/errs"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var supportedValidationTypes = map[string]bool{
	"run_command": true, "check_service_status": true, "check_port_listening": true,
	"check_file_exists": true, "check_file_contains": true, "check_history": true,
	"check_journalctl": true, "check_audit_log": true, "check_lvm_state": true,
	"check_process": true,
}

var supportedSetupTypes = map[string]bool{
	"run_command": true, "ensure_package_installed": true,
}

var allowedTopLevelKeys = map[string]bool{
	"id": true, "name": true, "description": true, "category": true, "difficulty": true,
	"score": true, "concepts": true, "setup": true, "user_action_simulation": true,
	"validation": true, "final_state_checks": true, "process_validation_checks": true,
	"hints": true, "flag": true, "objective_refs": true, "estimated_time_mins": true,
	"distro_compatibility": true, "solution_file": true,
}

// rawDoc is the loose YAML shape used for schema validation before the
// typed Document is built, mirroring challenge.py's dict-based approach so
// unknown-key and type-mismatch diagnostics can be produced precisely.
type rawDoc map[string]interface{}

// LoadDir reads every *.yaml/*.yml in dir, schema-validates each, and
// returns loaded documents keyed by id. Duplicates overwrite with a
// warning; invalid files are skipped with a per-file diagnostic, per §4.6
// "Loading".
func LoadDir(dir string, cfg *config.Config) (map[string]*Document, []string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, nil, errs.NewChallengeLoadError(fmt.Sprintf("challenges directory not found: %q", dir), err, nil)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	docs := map[string]*Document{}
	var diagnostics []string

	for _, path := range files {
		raw, err := ioutil.ReadFile(path)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: could not read file: %v", filepath.Base(path), err))
			continue
		}

		var data rawDoc
		if err := yaml.Unmarshal(raw, &data); err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: could not parse YAML: %v", filepath.Base(path), err))
			continue
		}
		if data == nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: content is not a YAML mapping", filepath.Base(path)))
			continue
		}

		errsList := validateStructure(data, filepath.Base(path))
		if len(errsList) > 0 {
			diagnostics = append(diagnostics, errsList...)
			continue
		}

		doc := buildDocument(data, cfg)
		if _, exists := docs[doc.ID]; exists {
			diagnostics = append(diagnostics, fmt.Sprintf(
				"%s: duplicate challenge id %q overwrites a previous definition", filepath.Base(path), doc.ID))
		}
		docs[doc.ID] = doc
	}

	return docs, diagnostics, nil
}

// validateStructure performs structural validation against the schema in
// §3, grounded directly on challenge.py's validate_challenge_structure.
func validateStructure(data rawDoc, filename string) []string {
	var errors []string

	for key := range data {
		if !allowedTopLevelKeys[key] {
			errors = append(errors, fmt.Sprintf("%s: unknown top-level key %q", filename, key))
		}
	}
	for _, key := range []string{"id", "name", "description"} {
		if _, ok := data[key]; !ok {
			errors = append(errors, fmt.Sprintf("%s: missing required top-level key %q", filename, key))
		}
	}

	id, _ := data["id"].(string)
	if idVal, ok := data["id"]; ok {
		if _, isStr := idVal.(string); !isStr {
			errors = append(errors, fmt.Sprintf("%s: 'id' must be a string", filename))
		} else if id != "" && !idPattern.MatchString(id) {
			errors = append(errors, fmt.Sprintf(
				"%s: 'id' field %q contains invalid characters; use only letters, numbers, hyphens, underscores, periods",
				filename, id))
		}
	}

	hasValidation := hasKey(data, "validation")
	hasFinalState := hasKey(data, "final_state_checks")
	hasProcessChecks := hasKey(data, "process_validation_checks")

	switch {
	case hasValidation && (hasFinalState || hasProcessChecks):
		errors = append(errors, fmt.Sprintf(
			"%s: cannot use 'validation' together with 'final_state_checks' or 'process_validation_checks'", filename))
	case !hasValidation && !hasFinalState:
		if hasProcessChecks {
			errors = append(errors, fmt.Sprintf(
				"%s: 'process_validation_checks' requires 'final_state_checks' (or use 'validation')", filename))
		} else {
			errors = append(errors, fmt.Sprintf(
				"%s: missing validation steps; provide 'validation' or 'final_state_checks'", filename))
		}
	}

	if hasValidation {
		errors = append(errors, validateStepsList(data["validation"], "validation", filename, supportedValidationTypes)...)
	} else {
		if hasFinalState {
			errors = append(errors, validateStepsList(data["final_state_checks"], "final_state_checks", filename, supportedValidationTypes)...)
		}
		if hasProcessChecks {
			errors = append(errors, validateStepsList(data["process_validation_checks"], "process_validation_checks", filename, supportedValidationTypes)...)
		}
	}

	if hasKey(data, "setup") {
		errors = append(errors, validateStepsList(data["setup"], "setup", filename, supportedSetupTypes)...)
	}

	if hasKey(data, "hints") {
		hints, ok := data["hints"].([]interface{})
		if !ok {
			errors = append(errors, fmt.Sprintf("%s: 'hints' must be a list", filename))
		} else {
			for i, h := range hints {
				hm, ok := h.(map[interface{}]interface{})
				if !ok {
					errors = append(errors, fmt.Sprintf("%s hint %d: must be a mapping", filename, i+1))
					continue
				}
				if _, ok := hm["text"]; !ok {
					errors = append(errors, fmt.Sprintf("%s hint %d: missing 'text'", filename, i+1))
				}
			}
		}
	}

	return errors
}

func hasKey(data rawDoc, key string) bool {
	_, ok := data[key]
	return ok
}

func validateStepsList(raw interface{}, keyName, filename string, supported map[string]bool) []string {
	var errors []string
	steps, ok := raw.([]interface{})
	if !ok {
		errors = append(errors, fmt.Sprintf("%s: %q must be a list", filename, keyName))
		return errors
	}
	if len(steps) == 0 && keyName != "process_validation_checks" && keyName != "setup" {
		errors = append(errors, fmt.Sprintf("%s: %q list cannot be empty", filename, keyName))
		return errors
	}

	for i, raw := range steps {
		label := fmt.Sprintf("%s %s step %d", filename, keyName, i+1)
		step, ok := raw.(map[interface{}]interface{})
		if !ok {
			errors = append(errors, fmt.Sprintf("%s: must be a mapping", label))
			continue
		}
		typeVal, ok := step["type"]
		if !ok {
			errors = append(errors, fmt.Sprintf("%s: missing required key 'type'", label))
			continue
		}
		typeStr, ok := typeVal.(string)
		if !ok {
			errors = append(errors, fmt.Sprintf("%s: 'type' must be a string", label))
			continue
		}
		if !supported[typeStr] {
			errors = append(errors, fmt.Sprintf("%s: unsupported type %q", label, typeStr))
			continue
		}
		errors = append(errors, validateStepFields(step, typeStr, keyName, label)...)
	}
	return errors
}
