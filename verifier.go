// Package verifier gates presentations behind single-use nonces and serves
// the challenge/verification endpoints over HTTP.
package verifier

var Version = "0.1.0"
