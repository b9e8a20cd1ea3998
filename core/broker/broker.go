// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package broker

import (
	"sync"

	"code.vegaprotocol.io/perps/core/events"
	"code.vegaprotocol.io/perps/logging"
)

// Interface is the event-bus surface the engines depend on. It is
// re-declared consumer-side in each engine package; this is the
// canonical definition used by the concrete broker.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/broker_mock.go -package mocks code.vegaprotocol.io/perps/core/broker Interface
type Interface interface {
	Send(event events.Event)
	SendBatch(events []events.Event)
}

// Subscriber receives the events it subscribed to, synchronously with
// the commit that produced them. The engine is single-writer per market
// so subscribers must be fast and must not call back into the engine.
type Subscriber interface {
	Push(evts ...events.Event)
	Types() []events.Type
}

type subscription struct {
	Subscriber
	id int
}

// Broker - the base broker type. Delivery is synchronous; the host is
// expected to hand off to its own transport if it needs buffering.
type Broker struct {
	log *logging.Logger

	mu    sync.Mutex
	seq   uint64
	tSubs map[events.Type][]*subscription
	subs  map[int]*subscription
	key   int
}

// New creates a new base broker.
func New(log *logging.Logger) *Broker {
	return &Broker{
		log:   log.Named(namedLogger),
		tSubs: map[events.Type][]*subscription{},
		subs:  map[int]*subscription{},
	}
}

// Send a single event to the interested subscribers.
func (b *Broker) Send(event events.Event) {
	b.SendBatch([]events.Event{event})
}

// SendBatch sends a batch of events to the interested subscribers.
func (b *Broker) SendBatch(evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range evts {
		b.seq++
		e.SetSequenceID(b.seq)
		for _, sub := range b.tSubs[e.Type()] {
			sub.Push(e)
		}
		for _, sub := range b.tSubs[events.All] {
			sub.Push(e)
		}
	}
}

// Subscribe registers a subscriber for the event types it declares, or
// all events if it declares the All type. Returns the subscription key.
func (b *Broker) Subscribe(s Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.key++
	sub := &subscription{Subscriber: s, id: b.key}
	b.subs[sub.id] = sub
	for _, t := range s.Types() {
		b.tSubs[t] = append(b.tSubs[t], sub)
	}
	return sub.id
}

// Unsubscribe removes the subscriber with the given key.
func (b *Broker) Unsubscribe(k int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[k]
	if !ok {
		return
	}
	delete(b.subs, k)
	for _, t := range sub.Types() {
		cur := b.tSubs[t]
		for i := range cur {
			if cur[i].id == k {
				b.tSubs[t] = append(cur[:i], cur[i+1:]...)
				break
			}
		}
	}
}
