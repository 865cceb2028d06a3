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

// Package event implements one-to-many subscriber notification, the
// fan-out mechanism published blocks, attestations, and observable beacon
// states are delivered through.
package event

import (
	"errors"
	"reflect"
	"sync"
)

var errBadChannel = errors.New("event: Subscribe argument does not have sendable channel type")

// Feed implements one-to-many subscriber notification. A Send made before
// any Subscribe call reaches no one and returns 0. The type of the first
// channel passed to Subscribe fixes the type of
// every later Send and Subscribe call on that Feed.
type Feed struct {
	mu     sync.Mutex
	etype  reflect.Type
	closed bool
	subs   map[*feedSub]struct{}
}

type feedSub struct {
	feed    *Feed
	channel reflect.Value
	once    sync.Once
	err     chan error
}

// Subscribe adds a channel to the feed. Future sends will be delivered on
// the channel until the subscription is canceled. All channels added to
// the feed must have the same element type.
func (f *Feed) Subscribe(channel interface{}) Subscription {
	chanval := reflect.ValueOf(channel)
	chantyp := chanval.Type()
	if chantyp.Kind() != reflect.Chan || chantyp.ChanDir()&reflect.SendDir == 0 {
		panic(errBadChannel)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		panic("event: Subscribe called on a closed Feed")
	}
	if f.etype == nil {
		f.etype = chantyp.Elem()
	} else if f.etype != chantyp.Elem() {
		panic(errBadChannel)
	}
	if f.subs == nil {
		f.subs = make(map[*feedSub]struct{})
	}
	sub := &feedSub{feed: f, channel: chanval, err: make(chan error, 1)}
	f.subs[sub] = struct{}{}
	return sub
}

func (f *Feed) remove(sub *feedSub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}

// Send delivers value to each subscribed channel in turn. It
// returns the number of subscribers that the value was sent to. Send
// blocks until every subscriber has received the value, so a slow
// consumer delays the whole feed; callers that cannot tolerate that use a
// buffered channel when subscribing.
func (f *Feed) Send(value interface{}) int {
	rvalue := reflect.ValueOf(value)

	f.mu.Lock()
	if f.etype != nil && f.etype != rvalue.Type() {
		f.mu.Unlock()
		panic(errors.New("event: Send argument type mismatches subscribed channel type"))
	}
	subs := make([]*feedSub, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.channel.Send(rvalue)
	}
	return len(subs)
}

// Close terminates the feed. Further Subscribe calls panic. Already
// subscribed channels are left open; callers are expected to Unsubscribe.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Unsubscribe removes the channel from the feed's subscriber set.
func (s *feedSub) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
		close(s.err)
	})
}

// Err returns a channel closed when the subscription is unsubscribed.
func (s *feedSub) Err() <-chan error {
	return s.err
}
