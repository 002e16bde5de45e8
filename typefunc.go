//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

import (
	"context"

	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	runtime "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/scud"
)

// Handler of AWS Lambda function A ⟼ B
type Handler[A, B any] func(context.Context, A) (B, error)

// Serve starts AWS Lambda runtime with typed handler. The handler is the
// same one used to declare FunctionTyped, keeping types of deployed
// function and its implementation aligned.
func Serve[A, B any](f Handler[A, B]) {
	runtime.Start(func(ctx context.Context, a A) (B, error) { return f(ctx, a) })
}

// FunctionTyped is AWS Lambda function with type annotation A ⟼ B
type FunctionTyped[A, B any] interface {
	awslambda.IFunction
	F[A, B]
}

// FunctionTyped construct properties
type FunctionTypedProps[A, B any] struct {
	*scud.FunctionGoProps
	handler Handler[A, B]
}

// NewFunctionTypedProps binds the handler type with Golang lambda definition
func NewFunctionTypedProps[A, B any](f Handler[A, B], props *scud.FunctionGoProps) *FunctionTypedProps[A, B] {
	return &FunctionTypedProps[A, B]{FunctionGoProps: props, handler: f}
}

type functionTyped[A, B any] struct {
	awslambda.IFunction
}

func (functionTyped[A, B]) HKT1(func(A) B) {}

func (f functionTyped[A, B]) F() awslambda.IFunction { return f.IFunction }

// Create a new instance of Golang lambda function with type annotation
func NewFunctionTyped[A, B any](scope constructs.Construct, id *string, props *FunctionTypedProps[A, B]) FunctionTyped[A, B] {
	return functionTyped[A, B]{
		IFunction: scud.NewFunctionGo(scope, id, props.FunctionGoProps),
	}
}

// Import existing lambda function with type annotation
func Function_FromFunctionArn[A, B any](scope constructs.Construct, id *string, arn *string) FunctionTyped[A, B] {
	return functionTyped[A, B]{
		IFunction: awslambda.Function_FromFunctionArn(scope, id, arn),
	}
}

// Invoke declares task that invokes typed lambda function, the task
// output is the function response.
func Invoke[A, B any](scope constructs.Construct, id *string, f F[A, B]) awsstepfunctionstasks.LambdaInvoke {
	return awsstepfunctionstasks.NewLambdaInvoke(scope, id,
		&awsstepfunctionstasks.LambdaInvokeProps{
			LambdaFunction: f.F(),
			OutputPath:     jsii.String("$.Payload"),
		},
	)
}
