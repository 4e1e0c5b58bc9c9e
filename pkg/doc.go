// Package api is the wire protocol and client SDK for SimpleMQ: the
// self-describing Message encoding, the length-prefixed frame codec and
// stream reassembler, and the Publisher/Subscriber client types that speak
// them over TCP or a local Unix-domain endpoint.
package api
