//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/stepflow"
	"github.com/stretchr/testify/require"
)

func TestStateFlow(t *testing.T) {
	// GIVEN
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)
	event := awsevents.EventBus_FromEventBusArn(stack, jsii.String("Events"), jsii.String("arn:aws:events:eu-west-1:000000000000:event-bus:my-event-bus"))
	queue := awssqs.Queue_FromQueueArn(stack, jsii.String("Queue"), jsii.String("arn:aws:sqs:eu-west-1:000000000000:my-queue"))

	f := stepflow.Function_FromFunctionArn[string, string](stack, jsii.String("F"),
		jsii.String("arn:aws:lambda:eu-west-1:000000000000:function:my-function"))

	validate := stepflow.Invoke(stack, jsii.String("Validate"), f)
	approve := stepflow.Invoke(stack, jsii.String("Approve"), f)
	reject := stepflow.Invoke(stack, jsii.String("Reject"), f)
	notify := stepflow.Invoke(stack, jsii.String("Notify"), f)
	score := stepflow.Invoke(stack, jsii.String("Score"), f)
	audit := stepflow.Invoke(stack, jsii.String("Audit"), f)
	abort := awsstepfunctions.NewFail(stack, jsii.String("Abort"), nil)

	definition := stepflow.NewBuilder().
		Perform(validate, stepflow.Catch{Next: "Abort", ResultPath: "$.error"}).
		Parallel("Assess", stepflow.ParallelProps{
			Branches: []*stepflow.Builder{
				stepflow.NewBuilder().Perform(score),
				stepflow.NewBuilder().Perform(audit),
			},
		}).
		Choice("Gate", stepflow.ChoiceProps{
			Branches: []stepflow.Branch{
				stepflow.When(stepflow.MustPredicate(`amount > 1000 && !approved`), "Reject"),
			},
			Default: "Approve",
		}).
		Perform(approve).
		Map("Broadcast", stepflow.MapProps{
			Iterator: stepflow.NewBuilder().Perform(notify),
			Props:    &awsstepfunctions.MapProps{ItemsPath: jsii.String("$.recipients")},
		}).
		End().
		Perform(reject).
		End().
		Perform(abort)

	// THEN
	stepflow.NewStateFlow(stack, jsii.String("Flow"),
		&stepflow.StateFlowProps{
			Definition:      definition,
			EventBus:        event,
			EventCategories: []string{"Loan"},
			DeadLetterQueue: queue,
		},
	)

	// WHEN
	resources := map[*string]*float64{
		jsii.String("AWS::Events::Rule"):                jsii.Number(1),
		jsii.String("AWS::StepFunctions::StateMachine"): jsii.Number(1),
		jsii.String("AWS::IAM::Role"):                   jsii.Number(2),
	}

	template := assertions.Template_FromStack(stack, nil)
	for key, val := range resources {
		template.ResourceCountIs(key, val)
	}

	def := definitionOf(t, stack)
	require.Equal(t, "Flow", field(def, "StartAt"))
	require.Equal(t, "DeadLetter", field(stateOf(def, "Flow"), "Catch", 0, "Next"))
	require.Equal(t, "Failed", field(stateOf(def, "DeadLetter"), "Next"))
	require.Equal(t, "Validate", field(stateOf(def, "Flow"), "Branches", 0, "StartAt"))

	validate := stateOf(def, "Validate")
	require.Equal(t, "Flow/0/Assess", field(validate, "Next"))
	require.Equal(t, "Abort", field(validate, "Catch", 0, "Next"))
	require.Equal(t, "$.error", field(validate, "Catch", 0, "ResultPath"))
	require.Equal(t, "States.ALL", field(validate, "Catch", 0, "ErrorEquals", 0))

	assess := stateOf(def, "Flow/0/Assess")
	require.Equal(t, "Parallel", field(assess, "Type"))
	require.Equal(t, "Flow/0/Gate", field(assess, "Next"))
	require.Equal(t, "Score", field(assess, "Branches", 0, "StartAt"))
	require.Equal(t, "Audit", field(assess, "Branches", 1, "StartAt"))

	gate := stateOf(def, "Flow/0/Gate")
	require.Equal(t, "Choice", field(gate, "Type"))
	require.Len(t, field(gate, "Choices"), 1)
	require.Equal(t, "Reject", field(gate, "Choices", 0, "Next"))
	require.Len(t, field(gate, "Choices", 0, "And"), 2)
	require.Equal(t, "Approve", field(gate, "Default"))

	broadcast := stateOf(def, "Flow/0/Broadcast")
	require.Equal(t, "Flow/0/Broadcast", field(stateOf(def, "Approve"), "Next"))
	require.Equal(t, "Notify", field(broadcast, "ItemProcessor", "StartAt"))
	require.Equal(t, true, field(broadcast, "End"))
	require.Equal(t, true, field(stateOf(def, "Reject"), "End"))
	require.Equal(t, "Fail", field(stateOf(def, "Abort"), "Type"))
}

func TestBuildLinksStates(t *testing.T) {
	// GIVEN
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)

	a := awsstepfunctions.NewPass(stack, jsii.String("A"), nil)
	b := awsstepfunctions.NewPass(stack, jsii.String("B"), nil)
	c := awsstepfunctions.NewPass(stack, jsii.String("C"), nil)

	// THEN
	chain, err := stepflow.NewBuilder().
		Perform(a).
		Choice("Loop", stepflow.ChoiceProps{
			Branches: []stepflow.Branch{
				stepflow.When(awsstepfunctions.Condition_BooleanEquals(jsii.String("$.again"), jsii.Bool(true)), "A"),
				stepflow.When(awsstepfunctions.Condition_BooleanEquals(jsii.String("$.skip"), jsii.Bool(true)), "C"),
			},
		}).
		Perform(b).
		End().
		Perform(c).
		Build(stack)

	// WHEN
	require.NoError(t, err)
	require.Equal(t, "A", *chain.Id())

	awsstepfunctions.NewStateMachine(stack, jsii.String("StateMachine"),
		&awsstepfunctions.StateMachineProps{
			DefinitionBody: awsstepfunctions.ChainDefinitionBody_FromChainable(chain),
		},
	)

	def := definitionOf(t, stack)
	require.Equal(t, "A", field(def, "StartAt"))
	require.Equal(t, "Loop", field(stateOf(def, "A"), "Next"))

	loop := stateOf(def, "Loop")
	require.Equal(t, "A", field(loop, "Choices", 0, "Next"))
	require.Equal(t, "$.again", field(loop, "Choices", 0, "Variable"))
	require.Equal(t, "C", field(loop, "Choices", 1, "Next"))
	require.Equal(t, "$.skip", field(loop, "Choices", 1, "Variable"))
	require.Equal(t, "B", field(loop, "Default"))

	require.Equal(t, true, field(stateOf(def, "B"), "End"))
	require.Equal(t, true, field(stateOf(def, "C"), "End"))
}

func TestBuildNestedIDIsolation(t *testing.T) {
	// GIVEN
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)

	pass := func(id string) awsstepfunctions.Pass {
		return awsstepfunctions.NewPass(stack, jsii.String(id), nil)
	}
	gate := func(next, otherwise string) stepflow.ChoiceProps {
		return stepflow.ChoiceProps{
			Branches: []stepflow.Branch{
				stepflow.When(awsstepfunctions.Condition_BooleanEquals(jsii.String("$.flag"), jsii.Bool(true)), next),
			},
			Default: otherwise,
		}
	}

	// nested definitions reuse ids of outer and sibling definitions
	iterator := stepflow.NewBuilder().
		Choice("Gate", gate("A", "B")).
		Perform(pass("A")).End().
		Perform(pass("B"))

	branch0 := stepflow.NewBuilder().
		Choice("Gate", gate("C", "D")).
		Perform(pass("C")).End().
		Perform(pass("D"))

	branch1 := stepflow.NewBuilder().
		Choice("Gate", gate("M", "F")).
		Map("M", stepflow.MapProps{Iterator: stepflow.NewBuilder().Perform(pass("G"))}).End().
		Perform(pass("F"))

	// THEN
	chain, err := stepflow.NewBuilder().
		Choice("Gate", gate("M", "P")).
		Map("M", stepflow.MapProps{Iterator: iterator}).End().
		Parallel("P", stepflow.ParallelProps{
			Branches: []*stepflow.Builder{branch0, branch1},
		}).
		Build(stack)

	// WHEN
	require.NoError(t, err)

	awsstepfunctions.NewStateMachine(stack, jsii.String("StateMachine"),
		&awsstepfunctions.StateMachineProps{
			DefinitionBody: awsstepfunctions.ChainDefinitionBody_FromChainable(chain),
		},
	)

	def := definitionOf(t, stack)
	require.Equal(t, "Gate", field(def, "StartAt"))

	outer := stateOf(def, "Gate")
	require.Equal(t, "M", field(outer, "Choices", 0, "Next"))
	require.Equal(t, "P", field(outer, "Default"))

	inner := field(stateOf(def, "M"), "ItemProcessor", "States", "M/Gate")
	require.Equal(t, "A", field(inner, "Choices", 0, "Next"))
	require.Equal(t, "B", field(inner, "Default"))

	parallel := stateOf(def, "P")
	require.Equal(t, "P/0/Gate", field(parallel, "Branches", 0, "StartAt"))
	require.Equal(t, "D", field(parallel, "Branches", 0, "States", "P/0/Gate", "Default"))
	require.Equal(t, "P/1/Gate", field(parallel, "Branches", 1, "StartAt"))
	require.Equal(t, "P/1/M", field(parallel, "Branches", 1, "States", "P/1/Gate", "Choices", 0, "Next"))
	require.Equal(t, "F", field(parallel, "Branches", 1, "States", "P/1/Gate", "Default"))
	require.Equal(t, "G", field(parallel, "Branches", 1, "States", "P/1/M", "ItemProcessor", "StartAt"))
}

func TestBuildOnlyOnce(t *testing.T) {
	// GIVEN
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)

	iterator := stepflow.NewBuilder().
		Perform(awsstepfunctions.NewPass(stack, jsii.String("B"), nil))

	definition := stepflow.NewBuilder().
		Perform(awsstepfunctions.NewPass(stack, jsii.String("A"), nil)).
		Map("M", stepflow.MapProps{Iterator: iterator})

	// THEN
	_, err := definition.Build(stack)
	require.NoError(t, err)

	// WHEN
	for name, b := range map[string]*stepflow.Builder{
		"definition": definition,
		"nested":     stepflow.NewBuilder().Map("N", stepflow.MapProps{Iterator: iterator}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(constructs.NewConstruct(stack, jsii.String("Again"+name)))

			var e *stepflow.AlreadyBuiltError
			require.ErrorAs(t, err, &e)
		})
	}
}

func TestStateFlowReservedNames(t *testing.T) {
	// GIVEN
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)
	queue := awssqs.Queue_FromQueueArn(stack, jsii.String("Queue"), jsii.String("arn:aws:sqs:eu-west-1:000000000000:my-queue"))

	a := awsstepfunctions.NewPass(stack, jsii.String("A"), nil)
	b := awsstepfunctions.NewPass(stack, jsii.String("B"), nil)

	// ids of steps are the same as construct ids of StateFlow
	definition := stepflow.NewBuilder().
		Choice("Flow", stepflow.ChoiceProps{
			Branches: []stepflow.Branch{
				stepflow.When(awsstepfunctions.Condition_BooleanEquals(jsii.String("$.flag"), jsii.Bool(true)), "StateMachine"),
			},
			Default: "Rule",
		}).
		Map("StateMachine", stepflow.MapProps{Iterator: stepflow.NewBuilder().Perform(a)}).End().
		Parallel("Rule", stepflow.ParallelProps{Branches: []*stepflow.Builder{stepflow.NewBuilder().Perform(b)}})

	// THEN
	require.NotPanics(t, func() {
		stepflow.NewStateFlow(stack, jsii.String("Flow"),
			&stepflow.StateFlowProps{
				Definition:      definition,
				EventBus:        awsevents.EventBus_FromEventBusArn(stack, jsii.String("Events"), jsii.String("arn:aws:events:eu-west-1:000000000000:event-bus:my-event-bus")),
				DeadLetterQueue: queue,
			},
		)
	})

	// WHEN
	def := definitionOf(t, stack)
	require.Equal(t, "Flow", field(def, "StartAt"))
	require.Equal(t, "Flow/0/Flow", field(stateOf(def, "Flow"), "Branches", 0, "StartAt"))

	choice := stateOf(def, "Flow/0/Flow")
	require.Equal(t, "Flow/0/StateMachine", field(choice, "Choices", 0, "Next"))
	require.Equal(t, "Flow/0/Rule", field(choice, "Default"))
}

func TestBuildFailsOnInvalidDefinition(t *testing.T) {
	app := awscdk.NewApp(nil)
	stack := awscdk.NewStack(app, jsii.String("Test"), nil)

	if _, err := stepflow.NewBuilder().Build(stack); err == nil {
		t.Errorf("empty definition is built")
	}
}
