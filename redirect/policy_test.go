// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"testing"

	"github.com/gogama/relay/request"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	for i := 0; i < DefaultLimit; i++ {
		assert.True(t, DefaultPolicy.Follow(&request.Execution{Redirects: i}))
	}
	assert.False(t, DefaultPolicy.Follow(&request.Execution{Redirects: DefaultLimit}))
	assert.False(t, DefaultPolicy.Follow(&request.Execution{Redirects: DefaultLimit + 1}))
}

func TestNever(t *testing.T) {
	assert.False(t, Never.Follow(&request.Execution{}))
	assert.False(t, Never.Follow(&request.Execution{Redirects: 1}))
}

func TestLimit(t *testing.T) {
	zero := Limit(0)
	assert.False(t, zero.Follow(&request.Execution{}))
	one := Limit(1)
	assert.True(t, one.Follow(&request.Execution{}))
	assert.False(t, one.Follow(&request.Execution{Redirects: 1}))
	two := Limit(2)
	assert.True(t, two.Follow(&request.Execution{Redirects: 1}))
	assert.False(t, two.Follow(&request.Execution{Redirects: 2}))
}
