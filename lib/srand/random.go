// Package srand is a thread safe cryptographically secure random number generator.
//
// It is a tiny wrapper around crypto/rand that buffers entropy per pooled
// reader rather than reading from the kernel for each number:
//
//	rng := rand.New(srand.Source)
package srand

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

var pool = &sync.Pool{
	New: func() interface{} {
		return bufio.NewReaderSize(rand.Reader, 4096)
	},
}

type Generator struct{}

func (s Generator) Seed(seed int64) {}

func (s Generator) Int63() int64 {
	return int64(s.Uint64() & ^uint64(1<<63))
}

func (s Generator) Uint64() (v uint64) {
	reader := pool.Get().(*bufio.Reader)
	defer pool.Put(reader)
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		panic(err)
	}
	return v
}

var Source = &Generator{}

// New returns a math/rand.Rand backed by Source.
//
// The returned object is not safe for concurrent use, as math/rand.Rand keeps
// internal state when used as an io.Reader. Create one per goroutine, or
// protect it with a lock.
func New() *mrand.Rand {
	return mrand.New(Source)
}
