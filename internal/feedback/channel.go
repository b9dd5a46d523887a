// Package feedback holds the single status line every wallet stage writes to.
// It is observational only: the latest message replaces the previous one and
// no history is kept.
package feedback

import (
	"sync"
	"time"

	"PasskeyWallet/pkg/logger"
)

// Message is the current status text.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Publisher is implemented by anything that accepts status updates.
type Publisher interface {
	Publish(text string)
}

// Sink receives every published message, in publish order.
type Sink func(Message)

// Channel is a last-write-wins status slot with optional live sinks.
type Channel struct {
	mu     sync.RWMutex
	last   Message
	sinks  map[int]Sink
	nextID int
	now    func() time.Time
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{sinks: make(map[int]Sink), now: time.Now}
}

// Publish replaces the current message and notifies sinks.
func (c *Channel) Publish(text string) {
	c.mu.Lock()
	c.last = Message{Text: text, At: c.now()}
	msg := c.last
	sinks := make([]Sink, 0, len(c.sinks))
	for _, s := range c.sinks {
		sinks = append(sinks, s)
	}
	c.mu.Unlock()

	logger.Named("feedback").Debug("status", "text", text)
	for _, s := range sinks {
		s(msg)
	}
}

// Last returns the most recent message, or the zero Message if none.
func (c *Channel) Last() Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Subscribe registers a sink and returns a function removing it.
func (c *Channel) Subscribe(sink Sink) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.sinks[id] = sink
	return func() {
		c.mu.Lock()
		delete(c.sinks, id)
		c.mu.Unlock()
	}
}

// Discard drops every message.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(string) {}

var (
	_ Publisher = (*Channel)(nil)
	_ Publisher = Discard{}
)
