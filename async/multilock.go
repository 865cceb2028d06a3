/*
Copyright 2017 Albert Tedja
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package async bundles small concurrency helpers used throughout the
// validator duty scheduler: a deadlock-free lock over an arbitrary set of
// named resources, a worker-pool fan-out, and time-based run loops.
package async

import (
	"runtime"
	"sort"
	"sync"
)

type refCountedChan struct {
	ch       chan struct{}
	refCount int
}

var locks = struct {
	sync.Mutex
	list map[string]*refCountedChan
}{list: make(map[string]*refCountedChan)}

// unique returns arr with duplicate entries removed, preserving the order
// of first occurrence.
func unique(arr []string) []string {
	seen := make(map[string]bool, len(arr))
	out := make([]string, 0, len(arr))
	for _, s := range arr {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// getChan returns the single-token channel guarding key, creating and
// registering it on first use and bumping its reference count.
func getChan(key string) chan struct{} {
	locks.Lock()
	defer locks.Unlock()
	rc, ok := locks.list[key]
	if !ok {
		rc = &refCountedChan{ch: make(chan struct{}, 1)}
		rc.ch <- struct{}{}
		locks.list[key] = rc
	}
	rc.refCount++
	return rc.ch
}

// releaseChan drops a reference to key's channel, removing it from the
// registry once nothing else holds it.
func releaseChan(key string) {
	locks.Lock()
	defer locks.Unlock()
	rc, ok := locks.list[key]
	if !ok {
		return
	}
	rc.refCount--
	if rc.refCount <= 0 {
		delete(locks.list, key)
	}
}

// Clean removes any zero-reference entries left behind in the registry and
// returns the keys it removed.
func Clean() []string {
	locks.Lock()
	defer locks.Unlock()
	cleaned := []string{}
	for k, rc := range locks.list {
		if rc.refCount <= 0 {
			delete(locks.list, k)
			cleaned = append(cleaned, k)
		}
	}
	return cleaned
}

// Multilock locks an arbitrary set of named resources at once, always in a
// fixed sorted order, so two Multilocks with overlapping key sets can never
// deadlock on each other.
type Multilock struct {
	keys  []string
	chans []chan struct{}
}

// NewMultilock builds a Multilock over the (deduplicated) set of keys.
func NewMultilock(keys ...string) *Multilock {
	sorted := unique(keys)
	sort.Strings(sorted)
	return &Multilock{keys: sorted}
}

// Lock acquires every underlying key lock, in sorted order.
func (m *Multilock) Lock() {
	m.chans = make([]chan struct{}, len(m.keys))
	for i, k := range m.keys {
		ch := getChan(k)
		m.chans[i] = ch
		<-ch
	}
}

// Unlock releases every underlying key lock, in reverse order.
func (m *Multilock) Unlock() {
	for i := len(m.keys) - 1; i >= 0; i-- {
		m.chans[i] <- struct{}{}
		releaseChan(m.keys[i])
	}
}

// Yield releases the held locks, gives the scheduler a chance to run other
// goroutines, and reacquires them. It is meant for spin-wait loops that
// block on state another Multilock holder needs to mutate.
func (m *Multilock) Yield() {
	m.Unlock()
	runtime.Gosched()
	m.Lock()
}
