// Package sse delivers named Server-Sent Events to connected browser clients.
//
// A Hub owns the client set and fans events out from a single goroutine.
// Handlers call ServeSSE to stream a client's events until it disconnects:
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	hub.Publish("state", snapshot)
package sse
