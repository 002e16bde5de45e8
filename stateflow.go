//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// StateFlow is AWS CDK L3, AWS Step Function state machine defined by Builder.
type StateFlow interface {
	constructs.IConstruct
	StateMachine() awsstepfunctions.StateMachine
}

// StateFlow L3 construct properties
type StateFlowProps struct {
	// Definition of the state machine
	Definition *Builder

	// EventBus starts the state machine on events, the state machine input
	// is the event detail.
	EventBus awsevents.IEventBus

	// EventCategories filters events by detail type.
	EventCategories []string

	// DeadLetterQueue is the queue to receive messages to if an error occurs
	// while running the state machine. The message is input JSON and "error".
	// The definition becomes the branch of Parallel state "Flow", failures
	// are handled by states "DeadLetter" and "Failed". Tasks of the definition
	// must not use these names.
	DeadLetterQueue awssqs.IQueue

	// StateMachineName is optional name of deployed state machine
	StateMachineName *string
}

type stateFlow struct {
	constructs.Construct
	machine awsstepfunctions.StateMachine
}

// Create a new instance of StateFlow construct. It panics if definition
// is not valid.
func NewStateFlow(scope constructs.Construct, id *string, props *StateFlowProps) StateFlow {
	flow := &stateFlow{Construct: constructs.NewConstruct(scope, id)}

	def := props.Definition
	if props.DeadLetterQueue != nil {
		def = withDeadLetterQueue(flow.Construct, def, props.DeadLetterQueue)
	}

	// steps of definition are isolated from constructs of StateFlow
	chain, err := def.Build(constructs.NewConstruct(flow.Construct, jsii.String("Definition")))
	if err != nil {
		panic(err)
	}

	flow.machine = awsstepfunctions.NewStateMachine(flow.Construct, jsii.String("StateMachine"),
		&awsstepfunctions.StateMachineProps{
			StateMachineName: props.StateMachineName,
			DefinitionBody:   awsstepfunctions.ChainDefinitionBody_FromChainable(chain),
		},
	)

	if props.EventBus != nil {
		pattern := &awsevents.EventPattern{}
		if len(props.EventCategories) != 0 {
			pattern.DetailType = jsii.Strings(props.EventCategories...)
		}
		trigger(flow.Construct, flow.machine, props.EventBus, pattern, "$.detail")
	}

	return flow
}

func (flow *stateFlow) StateMachine() awsstepfunctions.StateMachine {
	return flow.machine
}

// wraps definition into Parallel step, failures are sent to the queue
func withDeadLetterQueue(scope constructs.Construct, def *Builder, queue awssqs.IQueue) *Builder {
	dlq := awsstepfunctionstasks.NewSqsSendMessage(scope, jsii.String("DeadLetter"),
		&awsstepfunctionstasks.SqsSendMessageProps{
			Queue:       queue,
			MessageBody: awsstepfunctions.TaskInput_FromJsonPathAt(jsii.String("$")),
		},
	)
	fail := awsstepfunctions.NewFail(scope, jsii.String("Failed"),
		&awsstepfunctions.FailProps{},
	)

	return NewBuilder().
		Parallel("Flow", ParallelProps{
			Branches: []*Builder{def},
			Catches:  []Catch{{Next: "DeadLetter", ResultPath: "$.error"}},
			Props:    &awsstepfunctions.ParallelProps{OutputPath: jsii.String("$[0]")},
		}).
		End().
		Perform(dlq).
		Perform(fail)
}

// binds state machine with EventBridge rule, the whole event is the input
// of state machine unless the path is given
func trigger(
	scope constructs.Construct,
	machine awsstepfunctions.StateMachine,
	bus awsevents.IEventBus,
	pattern *awsevents.EventPattern,
	input string,
) {
	target := &awseventstargets.SfnStateMachineProps{}
	if input != "" {
		target.Input = awsevents.RuleTargetInput_FromEventPath(jsii.String(input))
	}

	awsevents.NewRule(scope, jsii.String("Rule"),
		&awsevents.RuleProps{
			EventBus:     bus,
			EventPattern: pattern,
		},
	).AddTarget(
		awseventstargets.NewSfnStateMachine(machine, target),
	)
}
