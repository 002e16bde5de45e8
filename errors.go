//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"fmt"
	"strconv"
	"strings"
)

// EmptyDefinitionError is returned when builder has no declared steps.
type EmptyDefinitionError struct{}

func (*EmptyDefinitionError) Error() string {
	return "empty definition of state machine"
}

// Occurrence of step id within the registry
type Occurrence struct {
	ID       string
	Position int
}

// DuplicateIDError enumerates every occurrence of every duplicated step id.
type DuplicateIDError struct {
	Occurrences []Occurrence
}

func (e *DuplicateIDError) Error() string {
	seq := make([]string, 0)
	pos := map[string][]string{}
	for _, o := range e.Occurrences {
		if _, has := pos[o.ID]; !has {
			seq = append(seq, o.ID)
		}
		pos[o.ID] = append(pos[o.ID], strconv.Itoa(o.Position))
	}

	ids := make([]string, len(seq))
	for i, id := range seq {
		ids[i] = fmt.Sprintf("%q at %s", id, strings.Join(pos[id], ", "))
	}

	return "duplicate step ids: " + strings.Join(ids, "; ")
}

// IDs returns duplicated ids in the order of first occurrence.
func (e *DuplicateIDError) IDs() []string {
	seq := make([]string, 0)
	has := map[string]struct{}{}
	for _, o := range e.Occurrences {
		if _, ok := has[o.ID]; !ok {
			has[o.ID] = struct{}{}
			seq = append(seq, o.ID)
		}
	}
	return seq
}

// UnresolvedReferenceError is returned when choice branch, choice default or
// catch handler refers to undeclared step.
type UnresolvedReferenceError struct {
	Step string
	Ref  string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("step %q refers to undeclared step %q", e.Step, e.Ref)
}

// UnhandledStepKindError indicates a declaration outside of known step kinds.
type UnhandledStepKindError struct {
	Position int
	Kind     string
}

func (e *UnhandledStepKindError) Error() string {
	return fmt.Sprintf("unhandled step kind %s at %d", e.Kind, e.Position)
}

// MisplacedEndError is returned when End marker is the entry of definition.
type MisplacedEndError struct {
	Position int
}

func (e *MisplacedEndError) Error() string {
	return fmt.Sprintf("end marker at %d is not a step", e.Position)
}

// UnsupportedCatchError is returned when catch clauses are declared for a
// task that has no error handlers (e.g. Pass state).
type UnsupportedCatchError struct {
	Step string
}

func (e *UnsupportedCatchError) Error() string {
	return fmt.Sprintf("step %q does not support catch", e.Step)
}

// TerminalStateError is returned when terminal state (e.g. Fail) falls
// through to the next declared step.
type TerminalStateError struct {
	Step string
	Next string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("terminal step %q cannot be followed by %q, use End()", e.Step, e.Next)
}

// MissingBuilderError is returned when Map or Parallel step has no nested definition.
type MissingBuilderError struct {
	Step string
}

func (e *MissingBuilderError) Error() string {
	return fmt.Sprintf("step %q has undefined nested builder", e.Step)
}

// AnonymousStepError is returned when step has no id, e.g. nil task.
type AnonymousStepError struct {
	Position int
}

func (e *AnonymousStepError) Error() string {
	return fmt.Sprintf("step at %d has no id", e.Position)
}

// SharedTaskError is returned when the same task instance is linked by
// more than one step, e.g. the same definition is used by two branches.
// The task state can be linked to its successors only once.
type SharedTaskError struct {
	Step string
}

func (e *SharedTaskError) Error() string {
	return fmt.Sprintf("task %q is used by more than one step", e.Step)
}

// AlreadyBuiltError is returned when definition is built again. Building
// links caller's tasks, they cannot be linked into another state machine.
type AlreadyBuiltError struct{}

func (*AlreadyBuiltError) Error() string {
	return "definition is already built"
}
