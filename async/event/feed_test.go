// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSendDeliversToAllSubscribers(t *testing.T) {
	var feed Feed
	c1 := make(chan int, 1)
	c2 := make(chan int, 1)
	feed.Subscribe(c1)
	feed.Subscribe(c2)

	n := feed.Send(42)
	require.Equal(t, 2, n)
	assert.Equal(t, 42, <-c1)
	assert.Equal(t, 42, <-c2)
}

func TestFeedUnsubscribeStopsDelivery(t *testing.T) {
	var feed Feed
	c1 := make(chan int, 1)
	sub1 := feed.Subscribe(c1)
	sub1.Unsubscribe()

	n := feed.Send(1)
	assert.Equal(t, 0, n)
}

func TestFeedSubscribeMismatchedTypePanics(t *testing.T) {
	var feed Feed
	feed.Subscribe(make(chan int, 1))
	assert.Panics(t, func() {
		feed.Subscribe(make(chan string, 1))
	})
}

func TestFeedSendMismatchedTypePanics(t *testing.T) {
	var feed Feed
	feed.Subscribe(make(chan int, 1))
	assert.Panics(t, func() {
		feed.Send("not an int")
	})
}

func TestFeedConcurrentSubscribeAndSend(t *testing.T) {
	var feed Feed
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := make(chan int, 1)
			sub := feed.Subscribe(ch)
			defer sub.Unsubscribe()
			<-ch
		}()
	}
	// Spin until all ten subscribers are registered, then send once so
	// each receives the value exactly once.
	for {
		feed.mu.Lock()
		n := len(feed.subs)
		feed.mu.Unlock()
		if n == 10 {
			break
		}
	}
	feed.Send(7)
	wg.Wait()
}
