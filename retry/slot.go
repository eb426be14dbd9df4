// Copyright 2023 The relay Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/relay/request"
)

// NewSlotWaiter constructs a Waiter implementing a slotted binary
// exponential backoff formula, in the style of Ethernet collision
// recovery, with optional additive jitter.
//
// The wait is computed in three steps. First the number of available
// slots is calculated as:
//
//	slots := min(2**attempt, ceil(max/step))
//
// Then a slot is picked uniformly at random from [1, slots], and the
// wait is the picked slot times step, plus a jitter term picked
// uniformly from [-jitter, +jitter]. The result is clamped to the
// range [0, max].
//
// Parameter step is the slot width and must be positive. Parameter max
// caps the wait and must be at least step. Parameter jitter widens each
// slot into a small band and may be zero for waits that are exact
// multiples of step.
//
// Parameter random follows the same convention as NewExpWaiter's jitter
// parameter: pass nil for a deterministic waiter which always picks the
// top slot with no jitter term, or pass a seed value (time.Time, int,
// or int64) or a random number generator (rand.Source or *rand.Rand).
func NewSlotWaiter(step, max, jitter time.Duration, random interface{}) Waiter {
	if step < 1 {
		panic("relay/retry: step must be positive")
	}
	if max < step {
		panic("relay/retry: max must be at least step")
	}
	if jitter < 0 {
		panic("relay/retry: jitter may not be negative")
	}
	return &slotWaiter{
		step:   step,
		max:    max,
		jitter: jitter,
		rand:   jitterToRand(random),
	}
}

type slotWaiter struct {
	step   time.Duration
	max    time.Duration
	jitter time.Duration
	rand   *rand.Rand
	lock   sync.Mutex
}

func (w *slotWaiter) Wait(e *request.Execution) time.Duration {
	slots := int64(1) << e.Attempt
	if slots < 1 {
		slots = 1<<63 - 1
	}
	maxSlots := (int64(w.max) + int64(w.step) - 1) / int64(w.step)
	if slots > maxSlots {
		slots = maxSlots
	}
	if slots < 1 {
		slots = 1
	}

	slot := slots
	var jitter int64
	if w.rand != nil {
		w.lock.Lock()
		slot = 1 + w.rand.Int63n(slots)
		if w.jitter > 0 {
			jitter = w.rand.Int63n(2*int64(w.jitter)+1) - int64(w.jitter)
		}
		w.lock.Unlock()
	}

	d := slot*int64(w.step) + jitter
	if d < 0 {
		d = 0
	}
	if d > int64(w.max) {
		d = int64(w.max)
	}
	return time.Duration(d)
}
