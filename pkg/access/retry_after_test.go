package access_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/access"
)

var _ = Describe("ParseRetryAfter", func() {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	DescribeTable("header values",
		func(value string, want time.Duration, wantOK bool) {
			got, ok := access.ParseRetryAfter(value, now)
			Expect(ok).To(Equal(wantOK))
			Expect(got).To(Equal(want))
		},
		Entry("delta seconds", "60", 60*time.Second, true),
		Entry("zero seconds", "0", time.Duration(0), true),
		Entry("padded", " 5 ", 5*time.Second, true),
		Entry("empty", "", time.Duration(0), false),
		Entry("negative", "-3", time.Duration(0), false),
		Entry("garbage", "soon", time.Duration(0), false),
		Entry("beyond the duration range", "99999999999", access.MaxRetryAfter, true),
		Entry("beyond the integer range", "99999999999999999999", time.Duration(0), false),
		Entry("http date in the future", now.Add(90*time.Second).Format(http.TimeFormat), 90*time.Second, true),
		Entry("http date in the past", now.Add(-time.Minute).Format(http.TimeFormat), time.Duration(0), true),
	)
})
