// Package event holds the topic names and payloads shared by the modules
// that publish and consume them.
package event
