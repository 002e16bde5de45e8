//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

// Package test defines lambda handler used by unit tests
package test

import (
	"context"
	"strings"
)

func Main(ctx context.Context, in string) (string, error) {
	return strings.ToUpper(in), nil
}
