package server

import (
	"runtime"
	"time"
)

// Config configures the accept loop and worker pool (§5, §6).
type Config struct {
	// Workers is the fixed worker-pool size. Default: hardware
	// parallelism, overridable via ember.Server.ListenWith.
	Workers int

	// ReadBufferSize bounds a single connection read (§5, default 4096).
	ReadBufferSize int

	// AcceptQueueSize bounds how many accepted connections may wait for
	// a free worker before Accept blocks the listener goroutine.
	AcceptQueueSize int

	// ShutdownGrace bounds how long Shutdown waits for in-flight
	// connections before force-closing them.
	ShutdownGrace time.Duration
}

// DefaultConfig mirrors bolt/core/types.go's DefaultConfig()/Config
// plain-struct convention: no external config library, just a
// constructor with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.GOMAXPROCS(0),
		ReadBufferSize:  4096,
		AcceptQueueSize: 1024,
		ShutdownGrace:   10 * time.Second,
	}
}
