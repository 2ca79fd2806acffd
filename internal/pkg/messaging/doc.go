// Package messaging provides a broker-agnostic API for publishing and
// consuming messages, plus a small routing layer on top of it.
//
// Drivers (Kafka, NATS, NSQ, Google Pub/Sub and an in-process memory broker)
// only know about queues. Exchange adds named topics with direct or
// partitioned (consistent-hash) routing, and bindings between topics and
// queues, so business code can publish to a topic with a routing key and
// stay independent from the broker underneath.
package messaging
