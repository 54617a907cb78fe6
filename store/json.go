package store

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/mindforge-ai/mindforge/errs"
)

// JSONFile is a typed wrapper over AtomicFile: it marshals/unmarshals a
// value of type T through the atomic write/checksum/backup protocol.
type JSONFile[T any] struct {
	file *AtomicFile
}

// NewJSONFile constructs a JSONFile guarding path with the given backup rotation.
func NewJSONFile[T any](path string, rotation int) *JSONFile[T] {
	return &JSONFile[T]{file: NewAtomicFile(path, rotation)}
}

// Path returns the guarded file path.
func (j *JSONFile[T]) Path() string { return j.file.Path() }

// Load reads and unmarshals the current value. If the file does not exist,
// it returns the zero value of T and a nil error.
func (j *JSONFile[T]) Load() (T, error) {
	var zero T
	data, err := j.file.Read()
	if err != nil {
		if isNotExist(err) {
			return zero, nil
		}
		return zero, err
	}
	if len(data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, errs.Wrap(errs.KindStoreCorruption, err, "store: unmarshal")
	}
	return v, nil
}

// Save marshals and atomically persists v.
func (j *JSONFile[T]) Save(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindStoreCorruption, err, "store: marshal")
	}
	return j.file.Write(data)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
