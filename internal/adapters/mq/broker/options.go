package broker

import "github.com/okian/gradestats/pkg/logger"

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithPrefetch limits unacknowledged deliveries per consumer.
func WithPrefetch(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithConsumerTag sets the AMQP consumer tag.
func WithConsumerTag(tag string) Option {
	return func(c *Consumer) {
		if tag != "" {
			c.tag = tag
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
