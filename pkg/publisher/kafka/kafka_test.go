package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	basepublisher "github.com/papercomputeco/folio/pkg/publisher"
)

type mockWriter struct {
	writes     []Message
	writeErr   error
	closeErr   error
	closeCalls int
}

func (m *mockWriter) WriteMessages(_ context.Context, messages ...Message) error {
	if m.writeErr != nil {
		return m.writeErr
	}

	m.writes = append(m.writes, messages...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closeCalls++
	return m.closeErr
}

func buildKafkaTestEvent() *basepublisher.Event {
	event := basepublisher.NewRateLimitedEvent(12*time.Second, true)
	event.RequestID = "req-123"
	event.Path = "/blogs"
	event.Status = 429
	return event
}

var _ = Describe("NewPublisher", func() {
	It("returns an error when brokers are not configured", func() {
		pub, err := NewPublisher(Config{
			Topic: "folio.session.v1",
		})

		Expect(err).To(HaveOccurred())
		Expect(pub).To(BeNil())
	})

	It("returns an error when topic is empty", func() {
		pub, err := NewPublisher(Config{
			Brokers: []string{"localhost:9092"},
		})

		Expect(err).To(HaveOccurred())
		Expect(pub).To(BeNil())
	})
})

var _ = Describe("Publisher", func() {
	It("writes one message keyed by request ID containing the marshaled event", func() {
		writer := &mockWriter{}
		pub, err := newPublisherWithWriter(Config{
			Topic:          "folio.session.v1",
			PublishTimeout: 2 * time.Second,
		}, writer)
		Expect(err).NotTo(HaveOccurred())

		event := buildKafkaTestEvent()
		err = pub.Publish(context.Background(), event)
		Expect(err).NotTo(HaveOccurred())

		Expect(writer.writes).To(HaveLen(1))
		Expect(string(writer.writes[0].Key)).To(Equal("req-123"))

		var decoded basepublisher.Event
		Expect(json.Unmarshal(writer.writes[0].Value, &decoded)).To(Succeed())
		Expect(decoded.Schema).To(Equal(basepublisher.SchemaSessionV1))
		Expect(decoded.Type).To(Equal(basepublisher.TypeRateLimited))
		Expect(decoded.RetryAfterSeconds).To(HaveValue(Equal(12)))
	})

	It("falls back to the event type as key", func() {
		writer := &mockWriter{}
		pub, err := newPublisherWithWriter(Config{
			Topic: "folio.session.v1",
		}, writer)
		Expect(err).NotTo(HaveOccurred())

		event, err := basepublisher.NewEvent(basepublisher.TypeForbidden)
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Publish(context.Background(), event)).To(Succeed())
		Expect(string(writer.writes[0].Key)).To(Equal(basepublisher.TypeForbidden))
	})

	It("returns writer errors from Publish", func() {
		writer := &mockWriter{
			writeErr: errors.New("write failed"),
		}
		pub, err := newPublisherWithWriter(Config{
			Topic: "folio.session.v1",
		}, writer)
		Expect(err).NotTo(HaveOccurred())

		err = pub.Publish(context.Background(), buildKafkaTestEvent())
		Expect(err).To(MatchError(ContainSubstring("write failed")))
	})

	It("returns an error from Publish for nil events", func() {
		writer := &mockWriter{}
		pub, err := newPublisherWithWriter(Config{
			Topic: "folio.session.v1",
		}, writer)
		Expect(err).NotTo(HaveOccurred())

		err = pub.Publish(context.Background(), nil)
		Expect(err).To(MatchError(errNilEvent))
	})

	It("rejects events without a type", func() {
		pub, err := newPublisherWithWriter(Config{
			Topic: "folio.session.v1",
		}, &mockWriter{})
		Expect(err).NotTo(HaveOccurred())

		err = pub.Publish(context.Background(), &basepublisher.Event{})
		Expect(err).To(MatchError(basepublisher.ErrEmptyType))
	})

	It("delegates Close to the underlying writer", func() {
		writer := &mockWriter{}
		pub, err := newPublisherWithWriter(Config{
			Topic: "folio.session.v1",
		}, writer)
		Expect(err).NotTo(HaveOccurred())

		Expect(pub.Close()).To(Succeed())
		Expect(writer.closeCalls).To(Equal(1))
	})
})
