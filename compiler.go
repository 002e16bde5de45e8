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
)

// compiler links registry positions into nodes. nodes is memo indexed by
// position, a node is memoized before its successors are compiled so that
// backward jumps terminate.
type compiler struct {
	steps []step
	index map[string]int
	nodes []*Node
}

func (c *compiler) compile(at int) (*Node, error) {
	if node := c.nodes[at]; node != nil {
		return node, nil
	}

	switch s := c.steps[at].(type) {
	case stepTask:
		return c.compileTask(at, s)
	case stepChoice:
		return c.compileChoice(at, s)
	case stepMap:
		return c.compileMap(at, s)
	case stepParallel:
		return c.compileParallel(at, s)
	case stepEnd:
		return nil, &MisplacedEndError{Position: at}
	default:
		return nil, &UnhandledStepKindError{Position: at, Kind: fmt.Sprintf("%T", s)}
	}
}

// the step at position falls through to the next one unless it is the last
// one or the next one is End marker
func (c *compiler) hasNextStep(at int) bool {
	return at+1 < len(c.steps) && c.steps[at+1].kind() != KindEnd
}

func (c *compiler) lookup(from string, ref string) (*Node, error) {
	at, has := c.index[ref]
	if !has {
		return nil, &UnresolvedReferenceError{Step: from, Ref: ref}
	}

	return c.compile(at)
}

func (c *compiler) compileTask(at int, s stepTask) (*Node, error) {
	if len(s.catches) != 0 {
		if _, ok := s.task.(catchable); !ok {
			return nil, &UnsupportedCatchError{Step: s.name}
		}
	}

	if c.hasNextStep(at) {
		if _, ok := s.task.(awsstepfunctions.INextable); !ok {
			return nil, &TerminalStateError{Step: s.name, Next: c.steps[at+1].id()}
		}
	}

	node := &Node{id: s.name, kind: s.kind(), task: s.task}
	c.nodes[at] = node

	if err := c.linkCatches(node, s.catches); err != nil {
		return nil, err
	}

	if err := c.linkNext(node, at); err != nil {
		return nil, err
	}

	return node, nil
}

func (c *compiler) compileChoice(at int, s stepChoice) (*Node, error) {
	node := &Node{
		id:          s.name,
		kind:        KindChoice,
		choices:     make([]Transition, 0, len(s.Branches)),
		choiceProps: s.Props,
	}
	c.nodes[at] = node

	for _, branch := range s.Branches {
		next, err := c.lookup(s.name, branch.Next)
		if err != nil {
			return nil, err
		}
		node.choices = append(node.choices,
			Transition{Condition: branch.Condition, Next: next},
		)
	}

	switch {
	case s.Default != "":
		otherwise, err := c.lookup(s.name, s.Default)
		if err != nil {
			return nil, err
		}
		node.otherwise = otherwise
	case c.hasNextStep(at):
		otherwise, err := c.compile(at + 1)
		if err != nil {
			return nil, err
		}
		node.otherwise = otherwise
	}

	return node, nil
}

func (c *compiler) compileMap(at int, s stepMap) (*Node, error) {
	if s.Iterator == nil {
		return nil, &MissingBuilderError{Step: s.name}
	}

	node := &Node{id: s.name, kind: KindMap, mapProps: s.Props}
	c.nodes[at] = node

	iterator, err := s.Iterator.Compile()
	if err != nil {
		return nil, fmt.Errorf("map %q: %w", s.name, err)
	}
	node.iterator = iterator

	if err := c.linkCatches(node, s.Catches); err != nil {
		return nil, err
	}

	if err := c.linkNext(node, at); err != nil {
		return nil, err
	}

	return node, nil
}

func (c *compiler) compileParallel(at int, s stepParallel) (*Node, error) {
	if len(s.Branches) == 0 {
		return nil, &MissingBuilderError{Step: s.name}
	}

	node := &Node{
		id:            s.name,
		kind:          KindParallel,
		branches:      make([]*Node, 0, len(s.Branches)),
		parallelProps: s.Props,
	}
	c.nodes[at] = node

	for i, b := range s.Branches {
		if b == nil {
			return nil, &MissingBuilderError{Step: s.name}
		}

		branch, err := b.Compile()
		if err != nil {
			return nil, fmt.Errorf("parallel %q branch %d: %w", s.name, i, err)
		}
		node.branches = append(node.branches, branch)
	}

	if err := c.linkCatches(node, s.Catches); err != nil {
		return nil, err
	}

	if err := c.linkNext(node, at); err != nil {
		return nil, err
	}

	return node, nil
}

func (c *compiler) linkCatches(node *Node, catches []Catch) error {
	for _, catch := range catches {
		next, err := c.lookup(node.id, catch.Next)
		if err != nil {
			return err
		}

		node.catches = append(node.catches,
			Handler{Errors: catch.Errors, ResultPath: catch.ResultPath, Next: next},
		)
	}

	return nil
}

func (c *compiler) linkNext(node *Node, at int) error {
	if !c.hasNextStep(at) {
		return nil
	}

	next, err := c.compile(at + 1)
	if err != nil {
		return err
	}
	node.next = next

	return nil
}
