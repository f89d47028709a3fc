// Package it holds end-to-end tests that run the stream client against an in-process
// vendor server and, when INTEGRATION=1, against a real Kafka broker.
package it
