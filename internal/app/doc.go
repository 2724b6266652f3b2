// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App loads a print template once, compiles it into a processor graph and
// then runs it for one request or for a sweep of requests that differ in a
// single attribute, writing one result document per run.
package app
