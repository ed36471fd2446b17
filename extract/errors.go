// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"errors"
	"fmt"
)

// Extraction failure categories. Callers use errors.Is against these
// sentinels to decide how to report a failed file.
var (
	// ErrUnsupportedFormat indicates a file extension no extractor claims.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrBackendUnavailable indicates a recognized format whose extractor
	// is not registered (legacy formats, disabled backends).
	ErrBackendUnavailable = errors.New("extraction backend unavailable")

	// ErrMalformedInput indicates the file matched a registered extractor
	// but its contents could not be parsed.
	ErrMalformedInput = errors.New("malformed input")
)

// FailureKind classifies an extraction failure.
type FailureKind string

const (
	UnsupportedFormat  FailureKind = "unsupported_format"
	BackendUnavailable FailureKind = "backend_unavailable"
	MalformedInput     FailureKind = "malformed_input"
)

// Failure describes why a specific file could not be extracted.
// It carries the source path so batch callers can report per-file outcomes.
type Failure struct {
	Kind FailureKind
	Path string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", f.Path, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is maps failure kinds onto the package sentinels so callers can use
// errors.Is without inspecting the Kind field.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrUnsupportedFormat:
		return f.Kind == UnsupportedFormat
	case ErrBackendUnavailable:
		return f.Kind == BackendUnavailable
	case ErrMalformedInput:
		return f.Kind == MalformedInput
	}
	return false
}
