// Copyright (C) 2025 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package services

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAborted is returned when a pass was cancelled at a checkpoint.
var ErrAborted = errors.New("analysis aborted")

// PassError is an unexpected failure inside a pass.
type PassError struct {
	Stage string
	Err   error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err is a cooperative cancellation, not a failure.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// runStage runs fn and turns both returned errors and panics into a PassError.
// Aborts are passed through untouched.
func runStage(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PassError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		if IsAborted(err) {
			return err
		}
		var passErr *PassError
		if errors.As(err, &passErr) {
			return err
		}
		return &PassError{Stage: stage, Err: err}
	}
	return nil
}
