package publisher

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type erroringPublisher struct {
	err    error
	events int
}

func (e *erroringPublisher) Publish(_ context.Context, _ *Event) error {
	e.events++
	return e.err
}

func (e *erroringPublisher) Close() error {
	return e.err
}

var _ = Describe("ChannelPublisher", func() {
	It("delivers events to every subscriber", func() {
		p := NewChannelPublisher()
		a := p.Subscribe()
		b := p.Subscribe()

		event := NewRateLimitedEvent(0, false)
		Expect(p.Publish(context.Background(), event)).To(Succeed())

		Expect(a).To(Receive(Equal(event)))
		Expect(b).To(Receive(Equal(event)))
	})

	It("drops events for full subscribers instead of blocking", func() {
		p := NewChannelPublisher()
		ch := p.Subscribe()

		for range defaultSubscriberBuffer + 5 {
			Expect(p.Publish(context.Background(), NewRateLimitedEvent(0, false))).To(Succeed())
		}
		Expect(ch).To(HaveLen(defaultSubscriberBuffer))
	})

	It("closes subscriber channels and rejects later publishes", func() {
		p := NewChannelPublisher()
		ch := p.Subscribe()

		Expect(p.Close()).To(Succeed())
		Expect(p.Close()).To(Succeed())
		Expect(ch).To(BeClosed())
		Expect(p.Subscribe()).To(BeClosed())

		err := p.Publish(context.Background(), NewRateLimitedEvent(0, false))
		Expect(err).To(HaveOccurred())
	})

	It("rejects nil events", func() {
		Expect(NewChannelPublisher().Publish(context.Background(), nil)).To(MatchError(errNilEvent))
	})
})

var _ = Describe("MultiPublisher", func() {
	It("publishes to all publishers and joins errors", func() {
		failing := &erroringPublisher{err: errors.New("broker down")}
		channel := NewChannelPublisher()
		ch := channel.Subscribe()

		m := NewMultiPublisher(failing, nil, channel)
		err := m.Publish(context.Background(), NewRateLimitedEvent(0, false))

		Expect(err).To(MatchError(ContainSubstring("broker down")))
		Expect(failing.events).To(Equal(1))
		Expect(ch).To(Receive())
	})

	It("closes every publisher", func() {
		channel := NewChannelPublisher()
		ch := channel.Subscribe()
		m := NewMultiPublisher(NewNopPublisher(), channel)

		Expect(m.Close()).To(Succeed())
		Expect(ch).To(BeClosed())
	})
})
