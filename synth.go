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

	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// synth materialises compiled nodes as states of AWS Step Function.
// States are memoized by node, each state is linked exactly once.
//
// Nested definitions (Map iterator, Parallel branch) are materialised by
// own synth within a child construct of the Map or Parallel state. States
// created by the builder are named after the path of nested definition
// (e.g. "ForEach/Gate", "FanOut/0/Gate") so that ids reused by nested
// definitions do not collide within the state machine.
type synth struct {
	scope  constructs.Construct
	prefix string
	states map[*Node]awsstepfunctions.IChainable
}

func newSynth(scope constructs.Construct, prefix string) *synth {
	return &synth{
		scope:  scope,
		prefix: prefix,
		states: make(map[*Node]awsstepfunctions.IChainable),
	}
}

func (s *synth) state(node *Node) awsstepfunctions.IChainable {
	if state, has := s.states[node]; has {
		return state
	}

	switch node.kind {
	case KindChoice:
		return s.choice(node)
	case KindMap:
		return s.foreach(node)
	case KindParallel:
		return s.parallel(node)
	default:
		return s.task(node)
	}
}

// name of state created by the builder, top level states keep their ids
func (s *synth) stateName(node *Node) *string {
	if s.prefix == "" {
		return nil
	}
	return jsii.String(s.prefix + node.id)
}

func (s *synth) task(node *Node) awsstepfunctions.IChainable {
	s.states[node] = node.task

	if f, ok := node.task.(catchable); ok {
		for _, h := range node.catches {
			f.AddCatch(s.state(h.Next), catchProps(h))
		}
	}

	if f, ok := node.task.(awsstepfunctions.INextable); ok && node.next != nil {
		f.Next(s.state(node.next))
	}

	return node.task
}

func (s *synth) choice(node *Node) awsstepfunctions.IChainable {
	props := awsstepfunctions.ChoiceProps{}
	if node.choiceProps != nil {
		props = *node.choiceProps
	}
	if props.StateName == nil {
		props.StateName = s.stateName(node)
	}

	choice := awsstepfunctions.NewChoice(s.scope, jsii.String(node.id), &props)
	s.states[node] = choice

	for _, t := range node.choices {
		choice.When(t.Condition, s.state(t.Next), nil)
	}

	if node.otherwise != nil {
		choice.Otherwise(s.state(node.otherwise))
	}

	return choice
}

func (s *synth) foreach(node *Node) awsstepfunctions.IChainable {
	props := awsstepfunctions.MapProps{}
	if node.mapProps != nil {
		props = *node.mapProps
	}
	if props.StateName == nil {
		props.StateName = s.stateName(node)
	}

	foreach := awsstepfunctions.NewMap(s.scope, jsii.String(node.id), &props)
	s.states[node] = foreach

	iterator := newSynth(
		constructs.NewConstruct(foreach, jsii.String("Iterator")),
		s.prefix+node.id+"/",
	)
	foreach.ItemProcessor(iterator.state(node.iterator),
		&awsstepfunctions.ProcessorConfig{},
	)

	for _, h := range node.catches {
		foreach.AddCatch(s.state(h.Next), catchProps(h))
	}

	if node.next != nil {
		foreach.Next(s.state(node.next))
	}

	return foreach
}

func (s *synth) parallel(node *Node) awsstepfunctions.IChainable {
	props := awsstepfunctions.ParallelProps{}
	if node.parallelProps != nil {
		props = *node.parallelProps
	}
	if props.StateName == nil {
		props.StateName = s.stateName(node)
	}

	parallel := awsstepfunctions.NewParallel(s.scope, jsii.String(node.id), &props)
	s.states[node] = parallel

	for i, branch := range node.branches {
		b := newSynth(
			constructs.NewConstruct(parallel, jsii.String(fmt.Sprintf("Branch%d", i))),
			fmt.Sprintf("%s%s/%d/", s.prefix, node.id, i),
		)
		parallel.Branch(b.state(branch))
	}

	for _, h := range node.catches {
		parallel.AddCatch(s.state(h.Next), catchProps(h))
	}

	if node.next != nil {
		parallel.Next(s.state(node.next))
	}

	return parallel
}

func catchProps(h Handler) *awsstepfunctions.CatchProps {
	props := &awsstepfunctions.CatchProps{}
	if len(h.Errors) != 0 {
		props.Errors = jsii.Strings(h.Errors...)
	}
	if h.ResultPath != "" {
		props.ResultPath = jsii.String(h.ResultPath)
	}
	return props
}
