//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/golem/duct"
)

// F is a generic interface that represents a function from A to B
// and its associated AWS Lambda implementation.
//
// It's phantom method HKT1, which encodes the type-level information
// of a rank-1 function type func(A) B.
type F[A, B any] interface {
	// HKT1 is a phantom method that represents the type-level
	// information of a function A → B. It is not meant to be called.
	HKT1(func(A) B)

	// F returns the underlying AWS Lambda IFunction instance.
	F() awslambda.IFunction
}

// Creates new morphism 𝑚, binding it with EventBridge for reading category `A` events.
func From[A any](in awsevents.IEventBus, cat ...string) duct.Morphism[A, A] {
	return duct.From(duct.L1[A](source{cat: cat, bus: in}))
}

type source struct {
	cat []string
	bus awsevents.IEventBus
}

// Compose lambda function transformer 𝑓: B ⟼ C with morphism 𝑚: A ⟼ B producing a new morphism 𝑚: A ⟼ C.
func Join[A, B, C any](f F[B, C], m duct.Morphism[A, B]) duct.Morphism[A, C] {
	fn := lambda{concurrency: 1, f: f.F()}
	return duct.Join(duct.L2[B, C](fn), m)
}

type lambda struct {
	concurrency int
	f           awslambda.IFunction
}

// Compose lambda function transformer 𝑓: B ⟼ C with morphism 𝑚: A ⟼ []B.
// The computation is nested within the slice context, it is executed by
// Map step over elements of []B.
func Lift[A, B, C any](f F[B, C], m duct.Morphism[A, []B]) duct.Morphism[A, C] {
	fn := lambda{concurrency: 1, f: f.F()}
	return duct.LiftF(duct.L2[B, C](fn), m)
}

// LiftP is equivalent to Lift but allows to specify the maximum number of
// concurrent invocations of the lambda function.
func LiftP[A, B, C any](n int, f F[B, C], m duct.Morphism[A, []B]) duct.Morphism[A, C] {
	fn := lambda{concurrency: n, f: f.F()}
	return duct.LiftF(duct.L2[B, C](fn), m)
}

// Wrap yields elements of []B without transformation, preserving the
// nested context.
func Wrap[A, B any](m duct.Morphism[A, []B]) duct.Morphism[A, B] {
	return duct.WrapF(m)
}

// Unit collapses the nested context into the morphism 𝑚: A ⟼ []B.
func Unit[A, B any](m duct.Morphism[A, B]) duct.Morphism[A, []B] {
	return duct.Unit(m)
}

// Yield results of 𝑚: A ⟼ B binding it with AWS SQS.
func ToQueue[A, B any](q awssqs.IQueue, m duct.Morphism[A, B]) duct.Morphism[A, duct.Void] {
	return duct.Yield(duct.L1[B](q), m)
}

// Yield results of 𝑚: A ⟼ B binding it with AWS EventBridge.
func ToEventBus[A, B any](source string, bus awsevents.IEventBus, m duct.Morphism[A, B], cat ...string) duct.Morphism[A, duct.Void] {
	return duct.Yield(duct.L1[B](eventbus{bus: bus, source: source, cat: cat}), m)
}

type eventbus struct {
	bus    awsevents.IEventBus
	source string
	cat    []string
}

//------------------------------------------------------------------------------

// TypeStep is AWS CDK L3, AWS Step Function state machine defined by morphism.
type TypeStep interface {
	constructs.IConstruct
}

// TypeStep L3 construct properties
type TypeStepProps struct {
	// DeadLetterQueue is the queue to receive messages to if an error occurs
	// while running the computation. The message is input JSON and "error".
	DeadLetterQueue awssqs.IQueue
}

// typeStep visits morphism AST and declares its steps into builders,
// the stack holds definitions of nested sequences.
type typeStep struct {
	constructs.Construct
	deadLetterQueue awssqs.IQueue
	bus             awsevents.IEventBus
	eventPattern    *awsevents.EventPattern
	args            string
	stack           []*sequence
}

// sequence under construction and error handlers of its lambdas
type sequence struct {
	*Builder
	name     string
	handlers []fallback
}

// fallback sends failed input to dead letter queue and fails execution
type fallback struct {
	send Task
	fail Task
}

var _ duct.Visitor = (*typeStep)(nil)

// Create a new instance of TypeStep construct
func NewTypeStep(scope constructs.Construct, id *string, props *TypeStepProps) TypeStep {
	return &typeStep{
		Construct:       constructs.NewConstruct(scope, id),
		deadLetterQueue: props.DeadLetterQueue,
		stack:           []*sequence{{Builder: NewBuilder()}},
	}
}

// StateMachine injects the morphism into the AWS Step Function,
// it constructs the state machine from the defined computation.
func StateMachine[A, B any](ts TypeStep, m duct.Morphism[A, B]) {
	b := ts.(*typeStep)
	if err := m.Apply(b); err != nil {
		panic(err)
	}
}

func (ts *typeStep) top() *sequence {
	return ts.stack[len(ts.stack)-1]
}

func (ts *typeStep) perform(f Task, catches ...Catch) {
	seq := ts.top()
	seq.Perform(f, catches...)
	seq.name = seq.name + idOf(f)
}

// error handlers are declared after the sequence, each one is a separate branch
func (seq *sequence) close() *Builder {
	for _, h := range seq.handlers {
		seq.End().Perform(h.send).Perform(h.fail)
	}
	seq.handlers = nil
	return seq.Builder
}

func (ts *typeStep) OnEnterMorphism(depth int, node duct.AstSeq) error {
	return nil
}

func (ts *typeStep) OnLeaveMorphism(depth int, node duct.AstSeq) error {
	if len(ts.stack) != 1 {
		return fmt.Errorf("bad definition of compute pipeline")
	}

	if ts.bus == nil {
		return fmt.Errorf("undefined event source for compute pipeline")
	}

	chain, err := ts.top().close().Build(ts.Construct)
	if err != nil {
		return fmt.Errorf("bad definition of compute pipeline: %w", err)
	}

	machine := awsstepfunctions.NewStateMachine(ts.Construct, jsii.String("StateMachine"),
		&awsstepfunctions.StateMachineProps{
			DefinitionBody: awsstepfunctions.ChainDefinitionBody_FromChainable(chain),
		},
	)

	trigger(ts.Construct, machine, ts.bus, ts.eventPattern, "")

	return nil
}

func (ts *typeStep) OnEnterSeq(depth int, node duct.AstSeq) error {
	ts.stack = append(ts.stack, &sequence{Builder: NewBuilder()})
	ts.args = "$"

	return nil
}

func (ts *typeStep) OnLeaveSeq(depth int, node duct.AstSeq) error {
	last := len(ts.stack) - 1
	seq := ts.stack[last]
	ts.stack = ts.stack[:last]

	hash := sha256.Sum256([]byte(seq.name))
	ihex := hex.EncodeToString(hash[:])[:8]

	concurrency := 1
	if f, ok := node.Seq[0].(duct.AstMap); ok {
		if f, ok := f.F.(lambda); ok {
			concurrency = f.concurrency
		}
	}

	id := "Seq" + ihex
	parent := ts.top()
	parent.Map(id, MapProps{
		Iterator: seq.close(),
		Props: &awsstepfunctions.MapProps{
			ItemsPath:      jsii.String("$.Payload"), // the first element is function, which is true by design
			MaxConcurrency: jsii.Number(concurrency),
		},
	})
	parent.name = parent.name + id
	ts.args = "$"

	return nil
}

func (ts *typeStep) OnEnterMap(depth int, node duct.AstMap) error {
	switch f := node.F.(type) {
	case lambda:
		uuid := *f.f.Node().Id()
		compute := awsstepfunctionstasks.NewLambdaInvoke(ts.Construct, jsii.String("Map"+uuid),
			&awsstepfunctionstasks.LambdaInvokeProps{
				InputPath:      jsii.String(ts.args),
				LambdaFunction: f.f,
			},
		)

		if ts.deadLetterQueue == nil {
			ts.perform(compute)
			return nil
		}

		dlq := awsstepfunctionstasks.NewSqsSendMessage(ts.Construct, jsii.String("Try"+uuid),
			&awsstepfunctionstasks.SqsSendMessageProps{
				Queue:       ts.deadLetterQueue,
				MessageBody: awsstepfunctions.TaskInput_FromJsonPathAt(jsii.String("$")),
			},
		)
		err := awsstepfunctions.NewFail(ts.Construct, jsii.String("Err"+uuid),
			&awsstepfunctions.FailProps{},
		)

		seq := ts.top()
		seq.handlers = append(seq.handlers, fallback{send: dlq, fail: err})
		ts.perform(compute, Catch{Next: "Try" + uuid, ResultPath: "$.error"})
		return nil
	default:
		return fmt.Errorf("unknown compute type: %T", f)
	}
}

func (ts *typeStep) OnLeaveMap(depth int, node duct.AstMap) error {
	// Note: Lambda's response of step function is always packed
	ts.args = "$.Payload"
	return nil
}

func (ts *typeStep) OnEnterFrom(depth int, node duct.AstFrom) error {
	switch f := node.Source.(type) {
	case source:
		ts.bus = f.bus
		ts.eventPattern = &awsevents.EventPattern{
			DetailType: jsii.Strings(node.Type),
		}
		if len(f.cat) != 0 {
			ts.eventPattern.DetailType = jsii.Strings(f.cat...)
		}
		ts.args = "$.detail"
		return nil
	default:
		return fmt.Errorf("unknown input type: %T", f)
	}
}

func (ts *typeStep) OnLeaveFrom(depth int, node duct.AstFrom) error {
	return nil
}

func (ts *typeStep) OnEnterYield(depth int, node duct.AstYield) error {
	switch f := node.Target.(type) {
	case awssqs.IQueue:
		sink := awsstepfunctionstasks.NewSqsSendMessage(ts.Construct, jsii.String("Sink"),
			&awsstepfunctionstasks.SqsSendMessageProps{
				Queue:       f,
				MessageBody: awsstepfunctions.TaskInput_FromJsonPathAt(jsii.String(ts.args)),
			},
		)
		ts.perform(sink)
		return nil

	case eventbus:
		kind := node.Type
		if len(f.cat) != 0 {
			kind = f.cat[0]
		}

		sink := awsstepfunctionstasks.NewEventBridgePutEvents(ts.Construct, jsii.String("Sink"),
			&awsstepfunctionstasks.EventBridgePutEventsProps{
				Entries: &[]*awsstepfunctionstasks.EventBridgePutEventsEntry{
					{
						Detail:     awsstepfunctions.TaskInput_FromJsonPathAt(jsii.String(ts.args)),
						DetailType: jsii.String(kind),
						Source:     jsii.String(f.source),
						EventBus:   f.bus,
					},
				},
			},
		)
		ts.perform(sink)
		return nil

	default:
		return fmt.Errorf("unknown reply type: %T", f)
	}
}

func (ts *typeStep) OnLeaveYield(depth int, node duct.AstYield) error {
	return nil
}
