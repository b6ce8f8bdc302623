package publisher

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewEvent", func() {
	It("returns an error when type is empty", func() {
		event, err := NewEvent("")
		Expect(err).To(MatchError(ErrEmptyType))
		Expect(event).To(BeNil())
	})

	It("sets schema, type, and timestamp", func() {
		before := time.Now()
		event, err := NewEvent(TypeForbidden)
		after := time.Now()

		Expect(err).NotTo(HaveOccurred())
		Expect(event.Schema).To(Equal(SchemaSessionV1))
		Expect(event.Type).To(Equal(TypeForbidden))
		Expect(event.OccurredAt).To(BeTemporally(">=", before))
		Expect(event.OccurredAt).To(BeTemporally("<=", after.Add(50*time.Millisecond)))
	})
})

var _ = Describe("NewRateLimitedEvent", func() {
	It("records the retry-after seconds when known", func() {
		event := NewRateLimitedEvent(30*time.Second, true)
		Expect(event.Type).To(Equal(TypeRateLimited))
		Expect(event.RetryAfterSeconds).To(HaveValue(Equal(30)))
	})

	It("leaves retry-after unset when unknown", func() {
		event := NewRateLimitedEvent(0, false)
		Expect(event.RetryAfterSeconds).To(BeNil())
	})
})
