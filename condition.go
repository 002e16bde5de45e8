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
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/jsii-runtime-go"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Predicate compiles boolean expression into Choice condition. Identifiers
// are JSONPath into the state input, `user.tier == "gold"` becomes
// StringEquals("$.user.tier", "gold"). Supported are logical operators
// (&&, ||, !, and, or, not), comparison of path with string, number, bool
// or nil literal and bare boolean paths.
func Predicate(expression string) (awsstepfunctions.Condition, error) {
	p, err := parsePredicate(expression)
	if err != nil {
		return nil, err
	}

	return p.render(), nil
}

// MustPredicate is equivalent to Predicate but panics on invalid expression.
func MustPredicate(expression string) awsstepfunctions.Condition {
	cond, err := Predicate(expression)
	if err != nil {
		panic(err)
	}
	return cond
}

// predicate is intermediate form of Choice condition
type predicate struct {
	op    string
	path  string
	value any
	args  []predicate
}

const (
	opAnd     = "And"
	opOr      = "Or"
	opNot     = "Not"
	opIsNull  = "IsNull"
	opBoolean = "BooleanEquals"
	opString  = "String"
	opNumber  = "Number"
)

func (p predicate) render() awsstepfunctions.Condition {
	switch p.op {
	case opAnd, opOr:
		seq := make([]awsstepfunctions.Condition, len(p.args))
		for i, arg := range p.args {
			seq[i] = arg.render()
		}
		if p.op == opAnd {
			return awsstepfunctions.Condition_And(seq...)
		}
		return awsstepfunctions.Condition_Or(seq...)
	case opNot:
		return awsstepfunctions.Condition_Not(p.args[0].render())
	case opIsNull:
		return awsstepfunctions.Condition_IsNull(jsii.String(p.path))
	case opBoolean:
		return awsstepfunctions.Condition_BooleanEquals(jsii.String(p.path), jsii.Bool(p.value.(bool)))
	case opString + "Equals":
		return awsstepfunctions.Condition_StringEquals(jsii.String(p.path), jsii.String(p.value.(string)))
	case opString + "LessThan":
		return awsstepfunctions.Condition_StringLessThan(jsii.String(p.path), jsii.String(p.value.(string)))
	case opString + "LessThanEquals":
		return awsstepfunctions.Condition_StringLessThanEquals(jsii.String(p.path), jsii.String(p.value.(string)))
	case opString + "GreaterThan":
		return awsstepfunctions.Condition_StringGreaterThan(jsii.String(p.path), jsii.String(p.value.(string)))
	case opString + "GreaterThanEquals":
		return awsstepfunctions.Condition_StringGreaterThanEquals(jsii.String(p.path), jsii.String(p.value.(string)))
	case opNumber + "Equals":
		return awsstepfunctions.Condition_NumberEquals(jsii.String(p.path), jsii.Number(p.value.(float64)))
	case opNumber + "LessThan":
		return awsstepfunctions.Condition_NumberLessThan(jsii.String(p.path), jsii.Number(p.value.(float64)))
	case opNumber + "LessThanEquals":
		return awsstepfunctions.Condition_NumberLessThanEquals(jsii.String(p.path), jsii.Number(p.value.(float64)))
	case opNumber + "GreaterThan":
		return awsstepfunctions.Condition_NumberGreaterThan(jsii.String(p.path), jsii.Number(p.value.(float64)))
	case opNumber + "GreaterThanEquals":
		return awsstepfunctions.Condition_NumberGreaterThanEquals(jsii.String(p.path), jsii.Number(p.value.(float64)))
	default:
		panic(fmt.Errorf("unknown condition %s", p.op))
	}
}

func parsePredicate(expression string) (predicate, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return predicate{}, fmt.Errorf("invalid predicate %q: %w", expression, err)
	}

	p, err := fromNode(tree.Node)
	if err != nil {
		return predicate{}, fmt.Errorf("invalid predicate %q: %w", expression, err)
	}

	return p, nil
}

func fromNode(node ast.Node) (predicate, error) {
	switch n := node.(type) {
	case *ast.UnaryNode:
		if n.Operator != "!" && n.Operator != "not" {
			return predicate{}, fmt.Errorf("unsupported operator %s", n.Operator)
		}
		arg, err := fromNode(n.Node)
		if err != nil {
			return predicate{}, err
		}
		return predicate{op: opNot, args: []predicate{arg}}, nil

	case *ast.BinaryNode:
		switch n.Operator {
		case "&&", "and":
			return fromLogical(opAnd, n)
		case "||", "or":
			return fromLogical(opOr, n)
		default:
			return fromComparison(n)
		}

	case *ast.IdentifierNode, *ast.MemberNode:
		path, err := jsonPath(n)
		if err != nil {
			return predicate{}, err
		}
		return predicate{op: opBoolean, path: path, value: true}, nil

	default:
		return predicate{}, fmt.Errorf("unsupported expression %s", node.String())
	}
}

func fromLogical(op string, n *ast.BinaryNode) (predicate, error) {
	lhs, err := fromNode(n.Left)
	if err != nil {
		return predicate{}, err
	}

	rhs, err := fromNode(n.Right)
	if err != nil {
		return predicate{}, err
	}

	// flatten a && b && c into single And
	args := make([]predicate, 0, 2)
	for _, arg := range []predicate{lhs, rhs} {
		if arg.op == op {
			args = append(args, arg.args...)
		} else {
			args = append(args, arg)
		}
	}

	return predicate{op: op, args: args}, nil
}

// operator with swapped operands
var flipped = map[string]string{
	"==": "==",
	"!=": "!=",
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}

var comparators = map[string]string{
	"==": "Equals",
	"<":  "LessThan",
	"<=": "LessThanEquals",
	">":  "GreaterThan",
	">=": "GreaterThanEquals",
}

func fromComparison(n *ast.BinaryNode) (predicate, error) {
	op := n.Operator
	if _, has := flipped[op]; !has {
		return predicate{}, fmt.Errorf("unsupported operator %s", op)
	}

	variable, literal := n.Left, n.Right
	if isLiteral(variable) {
		variable, literal = literal, variable
		op = flipped[op]
	}

	path, err := jsonPath(variable)
	if err != nil {
		return predicate{}, err
	}

	p, err := compare(path, op, literal)
	if err != nil {
		return predicate{}, err
	}

	return p, nil
}

func compare(path, op string, literal ast.Node) (predicate, error) {
	if op == "!=" {
		p, err := compare(path, "==", literal)
		if err != nil {
			return predicate{}, err
		}
		return predicate{op: opNot, args: []predicate{p}}, nil
	}

	switch v := literal.(type) {
	case *ast.StringNode:
		return predicate{op: opString + comparators[op], path: path, value: v.Value}, nil
	case *ast.IntegerNode:
		return predicate{op: opNumber + comparators[op], path: path, value: float64(v.Value)}, nil
	case *ast.FloatNode:
		return predicate{op: opNumber + comparators[op], path: path, value: v.Value}, nil
	case *ast.UnaryNode:
		// negative numbers are unary minus applied to literal
		if v.Operator == "-" {
			switch x := v.Node.(type) {
			case *ast.IntegerNode:
				return predicate{op: opNumber + comparators[op], path: path, value: -float64(x.Value)}, nil
			case *ast.FloatNode:
				return predicate{op: opNumber + comparators[op], path: path, value: -x.Value}, nil
			}
		}
	case *ast.BoolNode:
		if op == "==" {
			return predicate{op: opBoolean, path: path, value: v.Value}, nil
		}
	case *ast.NilNode:
		if op == "==" {
			return predicate{op: opIsNull, path: path}, nil
		}
	}

	return predicate{}, fmt.Errorf("unsupported comparison %s %s", op, literal.String())
}

func isLiteral(node ast.Node) bool {
	switch v := node.(type) {
	case *ast.StringNode, *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.NilNode:
		return true
	case *ast.UnaryNode:
		return v.Operator == "-"
	default:
		return false
	}
}

// jsonPath converts identifier or member chain (a.b.c, a["b"]) to $.a.b.c
func jsonPath(node ast.Node) (string, error) {
	seq := make([]string, 0)

	for {
		switch n := node.(type) {
		case *ast.IdentifierNode:
			seq = append(seq, n.Value)
			for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
				seq[i], seq[j] = seq[j], seq[i]
			}
			return "$." + strings.Join(seq, "."), nil
		case *ast.MemberNode:
			key, ok := n.Property.(*ast.StringNode)
			if !ok || n.Method {
				return "", fmt.Errorf("unsupported member access %s", n.String())
			}
			seq = append(seq, key.Value)
			node = n.Node
		default:
			return "", fmt.Errorf("expected path, found %s", node.String())
		}
	}
}
