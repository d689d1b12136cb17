package alerting_test

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/jordigilh/qa-intelligence/pkg/alerting"
)

var _ = Describe("RedisRateLimiter", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
		mr.Close()
	})

	It("admits up to the max and then blocks", func() {
		limiter := alerting.NewRedisRateLimiter(client, 60, 5)
		for i := 0; i < 5; i++ {
			allowed, err := limiter.Allow(context.Background(), "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())
		}

		allowed, err := limiter.Allow(context.Background(), "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeFalse())
	})

	It("tracks separate keys independently", func() {
		limiter := alerting.NewRedisRateLimiter(client, 60, 1)
		allowedA, err := limiter.Allow(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		allowedB, err := limiter.Allow(context.Background(), "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowedA).To(BeTrue())
		Expect(allowedB).To(BeTrue())
	})

	It("resets a key's window", func() {
		limiter := alerting.NewRedisRateLimiter(client, 60, 1)
		_, err := limiter.Allow(context.Background(), "test")
		Expect(err).NotTo(HaveOccurred())

		blocked, err := limiter.Allow(context.Background(), "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(blocked).To(BeFalse())

		Expect(limiter.Reset(context.Background(), "test")).To(Succeed())

		allowed, err := limiter.Allow(context.Background(), "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())
	})

	It("shares one window across independently constructed limiters against the same server", func() {
		first := alerting.NewRedisRateLimiter(client, 60, 1)
		second := alerting.NewRedisRateLimiter(client, 60, 1)

		allowed, err := first.Allow(context.Background(), "shared")
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed).To(BeTrue())

		blocked, err := second.Allow(context.Background(), "shared")
		Expect(err).NotTo(HaveOccurred())
		Expect(blocked).To(BeFalse(), "a second limiter instance backed by the same Redis server must see the first instance's admission")
	})
})
