// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package taskfile loads a task-set input from a JSON file on disk.
package taskfile

import (
	"encoding/json"
	"os"

	sim "github.com/edfkernel/edfkernel"
	edferrors "github.com/edfkernel/edfkernel/pkg/errors"
)

// DefaultPath is the task-set file name used when the caller doesn't name
// one explicitly, matching the reference driver's fallback.
const DefaultPath = "taskset1.json"

// Load reads and parses the task-set file at path.
func Load(path string) (sim.TaskSetInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.TaskSetInput{}, edferrors.NewInternalError(edferrors.ErrorCodeFileNotFound, "could not read task set file", err)
	}

	var input sim.TaskSetInput
	if err := json.Unmarshal(data, &input); err != nil {
		return sim.TaskSetInput{}, edferrors.NewInternalError(edferrors.ErrorCodeMalformedJSON, "could not parse task set file", err)
	}

	return input, nil
}
