//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
)

// Task is an externally constructed unit of work sequenced by the builder,
// e.g. awsstepfunctionstasks.LambdaInvoke, SqsSendMessage, Pass or Fail.
// The builder never creates tasks, it only links them.
type Task interface {
	awsstepfunctions.IChainable
}

// task states with error handlers (awsstepfunctions.TaskStateBase)
type catchable interface {
	AddCatch(handler awsstepfunctions.IChainable, props *awsstepfunctions.CatchProps) awsstepfunctions.TaskStateBase
}

// Catch routes errors raised by Task, Map or Parallel step to the handler step.
type Catch struct {
	// Error kinds matched by the clause, empty matches any error (States.ALL)
	Errors []string

	// Id of handler step, declared by the same builder
	Next string

	// JSONPath where error output is placed within the input
	ResultPath string
}

// Branch is a conditional transition of Choice step. Branches are evaluated
// by the workflow engine in the order of declaration.
type Branch struct {
	Condition awsstepfunctions.Condition
	Next      string
}

// When declares a conditional transition to the step with given id.
func When(cond awsstepfunctions.Condition, next string) Branch {
	return Branch{Condition: cond, Next: next}
}

// ChoiceProps declares branches of Choice step
type ChoiceProps struct {
	Branches []Branch

	// Id of the step taken when none of branches matches. Choice falls
	// through to the next declared step when Default is empty.
	Default string

	Props *awsstepfunctions.ChoiceProps
}

// MapProps declares iteration of Map step
type MapProps struct {
	Iterator *Builder
	Catches  []Catch
	Props    *awsstepfunctions.MapProps
}

// ParallelProps declares fan-out of Parallel step
type ParallelProps struct {
	Branches []*Builder
	Catches  []Catch
	Props    *awsstepfunctions.ParallelProps
}

// Kind of declared step
type Kind int

const (
	KindTask Kind = iota
	KindTaskWithCatch
	KindChoice
	KindMap
	KindParallel
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "Task"
	case KindTaskWithCatch:
		return "TaskWithCatch"
	case KindChoice:
		return "Choice"
	case KindMap:
		return "Map"
	case KindParallel:
		return "Parallel"
	case KindEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// step is a closed set of declarations held by the registry
type step interface {
	id() string
	kind() Kind
}

type stepTask struct {
	task    Task
	name    string
	catches []Catch
}

func (s stepTask) id() string { return s.name }
func (s stepTask) kind() Kind {
	if len(s.catches) != 0 {
		return KindTaskWithCatch
	}
	return KindTask
}

type stepChoice struct {
	name string
	ChoiceProps
}

func (s stepChoice) id() string { return s.name }
func (stepChoice) kind() Kind   { return KindChoice }

type stepMap struct {
	name string
	MapProps
}

func (s stepMap) id() string { return s.name }
func (stepMap) kind() Kind   { return KindMap }

type stepParallel struct {
	name string
	ParallelProps
}

func (s stepParallel) id() string { return s.name }
func (stepParallel) kind() Kind   { return KindParallel }

// End marker has no id, it is never a jump target
type stepEnd struct{}

func (stepEnd) id() string { return "" }
func (stepEnd) kind() Kind { return KindEnd }
