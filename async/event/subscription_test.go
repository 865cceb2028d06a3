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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSubscriptionError(t *testing.T) {
	sub := NewSubscription(func(unsub <-chan struct{}) error {
		return errors.New("boom")
	})
	err := <-sub.Err()
	assert.EqualError(t, err, "boom")
}

func TestNewSubscriptionUnsubscribeStopsProducer(t *testing.T) {
	stopped := make(chan struct{})
	sub := NewSubscription(func(unsub <-chan struct{}) error {
		<-unsub
		close(stopped)
		return nil
	})
	sub.Unsubscribe()
	<-stopped
}

func TestSubscriptionScopeTrackAndClose(t *testing.T) {
	var scope SubscriptionScope
	stopped := make([]bool, 3)
	for i := 0; i < 3; i++ {
		i := i
		scope.Track(NewSubscription(func(unsub <-chan struct{}) error {
			<-unsub
			stopped[i] = true
			return nil
		}))
	}
	assert.Equal(t, 3, scope.Count())
	scope.Close()
	assert.Equal(t, 0, scope.Count())
	for i, s := range stopped {
		assert.True(t, s, "subscription %d was not stopped", i)
	}
}

func TestSubscriptionScopeTrackAfterCloseUnsubscribesImmediately(t *testing.T) {
	var scope SubscriptionScope
	scope.Close()
	stopped := make(chan struct{})
	sub := scope.Track(NewSubscription(func(unsub <-chan struct{}) error {
		<-unsub
		close(stopped)
		return nil
	}))
	assert.Nil(t, sub)
	<-stopped
}
