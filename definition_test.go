//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
)

// definitionOf returns Amazon States Language definition of the single
// state machine declared by the stack. Tokens are replaced with "X".
func definitionOf(t *testing.T, stack awscdk.Stack) map[string]any {
	t.Helper()

	template := assertions.Template_FromStack(stack, nil)
	resources := template.FindResources(jsii.String("AWS::StepFunctions::StateMachine"), nil)
	if len(*resources) != 1 {
		t.Fatalf("expected single state machine, found %d", len(*resources))
	}

	for _, resource := range *resources {
		props := resource.(map[string]any)["Properties"].(map[string]any)

		var def map[string]any
		if err := json.Unmarshal([]byte(flatten(props["DefinitionString"])), &def); err != nil {
			t.Fatal(err)
		}
		return def
	}

	return nil
}

// flatten Fn::Join into the string
func flatten(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		join, ok := x["Fn::Join"].([]any)
		if !ok {
			return "X"
		}
		sep, _ := join[0].(string)
		parts, _ := join[1].([]any)
		seq := make([]string, len(parts))
		for i, p := range parts {
			if s, ok := p.(string); ok {
				seq[i] = s
			} else {
				seq[i] = "X"
			}
		}
		return strings.Join(seq, sep)
	default:
		return "X"
	}
}

// stateOf looks up the state by name, nested definitions included
func stateOf(def map[string]any, name string) map[string]any {
	states, _ := def["States"].(map[string]any)
	if state, has := states[name]; has {
		return state.(map[string]any)
	}

	for _, s := range states {
		state := s.(map[string]any)
		for _, key := range []string{"ItemProcessor", "Iterator"} {
			if sub, ok := state[key].(map[string]any); ok {
				if found := stateOf(sub, name); found != nil {
					return found
				}
			}
		}
		if branches, ok := state["Branches"].([]any); ok {
			for _, b := range branches {
				if found := stateOf(b.(map[string]any), name); found != nil {
					return found
				}
			}
		}
	}

	return nil
}

// field navigates nested maps and arrays, e.g. field(s, "Catch", 0, "Next")
func field(v any, path ...any) any {
	for _, key := range path {
		switch k := key.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = m[k]
		case int:
			a, ok := v.([]any)
			if !ok || k >= len(a) {
				return nil
			}
			v = a[k]
		}
	}
	return v
}
