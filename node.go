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

// Node is a compiled step linked with its successors. Nodes compiled from
// the same registry position are the same instance.
type Node struct {
	id   string
	kind Kind
	task Task

	next      *Node
	choices   []Transition
	otherwise *Node
	catches   []Handler
	iterator  *Node
	branches  []*Node

	choiceProps   *awsstepfunctions.ChoiceProps
	mapProps      *awsstepfunctions.MapProps
	parallelProps *awsstepfunctions.ParallelProps
}

// Transition is compiled branch of Choice node
type Transition struct {
	Condition awsstepfunctions.Condition
	Next      *Node
}

// Handler is compiled catch clause
type Handler struct {
	Errors     []string
	ResultPath string
	Next       *Node
}

// ID of the step
func (n *Node) ID() string { return n.id }

// Kind of the step
func (n *Node) Kind() Kind { return n.kind }

// Task wrapped by Task node, nil for other kinds
func (n *Node) Task() Task { return n.task }

// Next is linear successor, nil if the step terminates the branch.
// Choice node never has linear successor.
func (n *Node) Next() *Node { return n.next }

// Choices of Choice node in the order of declaration
func (n *Node) Choices() []Transition { return n.choices }

// Otherwise is default branch of Choice node, either explicit or fall through.
func (n *Node) Otherwise() *Node { return n.otherwise }

// Catches of Task, Map or Parallel node
func (n *Node) Catches() []Handler { return n.catches }

// Iterator is the entry of Map node iteration body
func (n *Node) Iterator() *Node { return n.iterator }

// Branches are entries of Parallel node branches
func (n *Node) Branches() []*Node { return n.branches }

// walk visits every node reachable from the entry once, including nodes
// of nested definitions.
func walk(entry *Node, f func(*Node) error) error {
	seen := map[*Node]struct{}{}

	var visit func(*Node) error
	visit = func(n *Node) error {
		if n == nil {
			return nil
		}
		if _, has := seen[n]; has {
			return nil
		}
		seen[n] = struct{}{}

		if err := f(n); err != nil {
			return err
		}

		seq := []*Node{n.next, n.otherwise, n.iterator}
		for _, t := range n.choices {
			seq = append(seq, t.Next)
		}
		for _, h := range n.catches {
			seq = append(seq, h.Next)
		}
		seq = append(seq, n.branches...)

		for _, x := range seq {
			if err := visit(x); err != nil {
				return err
			}
		}
		return nil
	}

	return visit(entry)
}
