// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/eventlog/event"
)

const testEvtType event.EventType = "test.event"

func TestEventBusSingleSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(event.NewEvent(testEvtType, 999))
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		v, ok := evt.Data.(int)
		require.True(t, ok, "event data was not of expected type, got %T", evt.Data)
		assert.Equal(t, 999, v)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	_, otherCh := eb.Subscribe("other.event")
	eb.Publish(event.NewEvent(testEvtType, 1))
	for _, ch := range []<-chan event.Event{sub1Ch, sub2Ch} {
		select {
		case evt := <-ch:
			assert.Equal(t, 1, evt.Data)
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event")
		}
	}
	select {
	case evt := <-otherCh:
		t.Fatalf("received unexpected event: %#v", evt)
	default:
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	eb.Publish(event.NewEvent(testEvtType, 1))
	_, ok := <-subCh
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestEventBusSubscribeFuncAndAsync(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	var count atomic.Int32
	eb.SubscribeFunc(testEvtType, func(event.Event) {
		count.Add(1)
	})
	for range 5 {
		require.True(t, eb.PublishAsync(event.NewEvent(testEvtType, nil)))
	}
	require.Eventually(t, func() bool {
		return count.Load() == 5
	}, 2*time.Second, 10*time.Millisecond)
	eb.Stop()
	assert.False(t, eb.PublishAsync(event.NewEvent(testEvtType, nil)))
	// Stop is idempotent
	eb.Stop()
}

func TestEventBusSlowSubscriberDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	eb.Subscribe(testEvtType)
	done := make(chan struct{})
	go func() {
		for range event.EventQueueSize + 5 {
			eb.Publish(event.NewEvent(testEvtType, nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	n, err := testutil.GatherAndCount(reg, "eventlog_events_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
