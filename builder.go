//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

// Package stepflow is a fluent builder of AWS Step Functions state machines.
//
// Steps are declared as a flat sequence, each step falls through to the
// next one unless the branch is terminated with End. Choice branches and
// catch clauses jump to steps by id, forward and backward references are
// allowed. The builder compiles declarations into a graph of linked nodes
// and materialises it as AWS CDK states.
package stepflow

import (
	"log/slog"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/constructs-go/constructs/v10"
)

// Builder is an append-only registry of declared steps.
type Builder struct {
	steps []step
	built bool
}

// NewBuilder creates empty definition of state machine
func NewBuilder() *Builder {
	return &Builder{steps: make([]step, 0)}
}

// Perform the task. The step id is the id of the task. Errors raised by the
// task are routed to handlers if catch clauses are given.
func (b *Builder) Perform(task Task, catches ...Catch) *Builder {
	b.steps = append(b.steps,
		stepTask{task: task, name: idOf(task), catches: catches},
	)
	return b
}

// Choice declares conditional branching to other steps.
func (b *Builder) Choice(id string, props ChoiceProps) *Builder {
	b.steps = append(b.steps, stepChoice{name: id, ChoiceProps: props})
	return b
}

// Map declares iteration, the iterator is compiled as independent definition.
func (b *Builder) Map(id string, props MapProps) *Builder {
	b.steps = append(b.steps, stepMap{name: id, MapProps: props})
	return b
}

// Parallel declares fan-out to independent definitions. The next step is
// reached after all branches are completed.
func (b *Builder) Parallel(id string, props ParallelProps) *Builder {
	b.steps = append(b.steps, stepParallel{name: id, ParallelProps: props})
	return b
}

// End terminates the branch. The preceding step does not fall through to
// the step declared after the marker.
func (b *Builder) End() *Builder {
	b.steps = append(b.steps, stepEnd{})
	return b
}

// Compile declarations into the graph, returns the entry node.
func (b *Builder) Compile() (*Node, error) {
	if b == nil || len(b.steps) == 0 {
		return nil, &EmptyDefinitionError{}
	}

	index, err := resolve(b.steps)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		steps: b.steps,
		index: index,
		nodes: make([]*Node, len(b.steps)),
	}

	return c.compile(0)
}

// Build compiles declarations and materialises them as states of
// AWS Step Function within the scope. The definition is built only once,
// each task is linked by a single step.
func (b *Builder) Build(scope constructs.Construct) (awsstepfunctions.IChainable, error) {
	node, err := b.Compile()
	if err != nil {
		return nil, err
	}

	if err := exclusiveTasks(node); err != nil {
		return nil, err
	}

	if err := b.claim(); err != nil {
		return nil, err
	}

	s := newSynth(scope, "")
	chain := s.state(node)

	slog.Debug("state machine definition is built",
		"scope", *scope.Node().Path(),
		"entry", node.ID(),
		"states", len(s.states),
	)

	return chain, nil
}

// claim marks the definition and its nested definitions as built
func (b *Builder) claim() error {
	seq := []*Builder{}

	var visit func(*Builder)
	visit = func(x *Builder) {
		if x == nil {
			return
		}
		seq = append(seq, x)
		for _, s := range x.steps {
			switch s := s.(type) {
			case stepMap:
				visit(s.Iterator)
			case stepParallel:
				for _, branch := range s.Branches {
					visit(branch)
				}
			}
		}
	}
	visit(b)

	for _, x := range seq {
		if x.built {
			return &AlreadyBuiltError{}
		}
	}

	for _, x := range seq {
		x.built = true
	}

	return nil
}

// exclusiveTasks checks that each task instance belongs to a single node
func exclusiveTasks(entry *Node) error {
	owners := map[Task]*Node{}

	return walk(entry, func(n *Node) error {
		if n.task == nil {
			return nil
		}

		if owner, has := owners[n.task]; has && owner != n {
			return &SharedTaskError{Step: n.id}
		}
		owners[n.task] = n
		return nil
	})
}

func idOf(task Task) string {
	if task == nil {
		return ""
	}

	if id := task.Id(); id != nil {
		return *id
	}

	return ""
}
