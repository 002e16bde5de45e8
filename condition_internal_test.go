//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePredicate(t *testing.T) {
	for expression, expected := range map[string]predicate{
		`amount > 1000`: {op: "NumberGreaterThan", path: "$.amount", value: float64(1000)},
		`1000 >= amount`: {op: "NumberLessThanEquals", path: "$.amount", value: float64(1000)},
		`score < -1.5`:   {op: "NumberLessThan", path: "$.score", value: -1.5},
		`user.tier == "gold"`: {op: "StringEquals", path: "$.user.tier", value: "gold"},
		`user["tier"] <= "b"`: {op: "StringLessThanEquals", path: "$.user.tier", value: "b"},
		`approved`:            {op: "BooleanEquals", path: "$.approved", value: true},
		`approved == false`:   {op: "BooleanEquals", path: "$.approved", value: false},
		`reason == nil`:       {op: "IsNull", path: "$.reason"},
		`status != "ok"`: {op: "Not", args: []predicate{
			{op: "StringEquals", path: "$.status", value: "ok"},
		}},
		`!approved`: {op: "Not", args: []predicate{
			{op: "BooleanEquals", path: "$.approved", value: true},
		}},
		`a > 1 && b < 2 && c`: {op: "And", args: []predicate{
			{op: "NumberGreaterThan", path: "$.a", value: float64(1)},
			{op: "NumberLessThan", path: "$.b", value: float64(2)},
			{op: "BooleanEquals", path: "$.c", value: true},
		}},
		`a == 1 or b == "x"`: {op: "Or", args: []predicate{
			{op: "NumberEquals", path: "$.a", value: float64(1)},
			{op: "StringEquals", path: "$.b", value: "x"},
		}},
	} {
		t.Run(expression, func(t *testing.T) {
			p, err := parsePredicate(expression)
			require.NoError(t, err)
			require.Equal(t, expected, p)
		})
	}
}

func TestParsePredicateInvalid(t *testing.T) {
	for _, expression := range []string{
		`amount >`,
		`a + 1`,
		`a == b`,
		`len(a) > 1`,
		`a > true`,
		`1 == 2`,
		`a.b() == 1`,
	} {
		t.Run(expression, func(t *testing.T) {
			_, err := parsePredicate(expression)
			require.Error(t, err)
		})
	}
}
