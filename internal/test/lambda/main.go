//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package main

import (
	"github.com/fogfish/stepflow"
	"github.com/fogfish/stepflow/internal/test"
)

func main() {
	stepflow.Serve(test.Main)
}
