// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import "sync"

// throttle bounds the number of concurrent file transfers. Each
// transfer records its own outcome, so there is no first-error
// shortcut: Wait just waits.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	setupOnce sync.Once
}

func (t *throttle) Acquire() {
	t.setupOnce.Do(func() { t.ch = make(chan bool, t.Max) })
	t.wg.Add(1)
	t.ch <- true
}

func (t *throttle) Release() {
	t.wg.Done()
	<-t.ch
}

func (t *throttle) Wait() {
	t.wg.Wait()
}
