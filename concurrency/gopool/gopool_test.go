/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gopool

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryWorker(t *testing.T) {
	p := New("TestPoolRunsEveryWorker", 8)

	var ran int32
	faults := p.Run(func(worker int) {
		atomic.AddInt32(&ran, 1)
	})

	require.Empty(t, faults)
	assert.EqualValues(t, 8, ran)
}

func TestPoolCollectsPanicsWithoutStoppingOtherWorkers(t *testing.T) {
	p := New("TestPoolCollectsPanicsWithoutStoppingOtherWorkers", 6)

	var ran int32
	faults := p.Run(func(worker int) {
		defer atomic.AddInt32(&ran, 1)
		if worker%2 == 0 {
			panic(fmt.Sprintf("worker %d hit a corrupted block", worker))
		}
	})

	assert.EqualValues(t, 6, ran, "a panicking worker must not prevent the others from running")
	assert.Len(t, faults, 3)
}

func TestNewCoercesNonPositiveWorkerCount(t *testing.T) {
	p := New("TestNewCoercesNonPositiveWorkerCount", 0)
	assert.Equal(t, 1, p.CurrentWorkers())

	p = New("TestNewCoercesNonPositiveWorkerCount", -5)
	assert.Equal(t, 1, p.CurrentWorkers())
}

func TestCurrentWorkersMatchesConfiguredCount(t *testing.T) {
	p := New("TestCurrentWorkersMatchesConfiguredCount", 4)
	assert.Equal(t, 4, p.CurrentWorkers())
	p.Run(func(worker int) {})
	assert.Equal(t, 4, p.CurrentWorkers())
}
