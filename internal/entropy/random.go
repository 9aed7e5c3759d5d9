// Package entropy provides seedable random sources. Every stochastic choice in
// the simulation (heading jitter, scenario selection, score sampling) draws
// from a Source so runs can be reproduced from a seed.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
	"sync"
)

// Source is the random interface consumed by the simulation.
type Source interface {
	Float64() float64 // [0, 1)
	Intn(n int) int   // [0, n)
	Int63() int64
}

// New returns a deterministic, non-thread-safe source for the given seed.
func New(seed int64) Source {
	return mrand.New(mrand.NewSource(seed))
}

// Derive returns a deterministic source for an independent stream of seed.
// The same (seed, stream) pair always yields the same sequence.
func Derive(seed int64, stream uint64) Source {
	return New(mix(uint64(seed), stream))
}

// mix is a splitmix64 finalizer over seed and stream.
func mix(seed, stream uint64) int64 {
	z := seed + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z & math.MaxInt64)
}

// Locked wraps a Source with a mutex so several goroutines can share it.
type Locked struct {
	mu  sync.Mutex
	src Source
}

// NewLocked returns a goroutine-safe source for the given seed.
func NewLocked(seed int64) *Locked {
	return &Locked{src: New(seed)}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

func (l *Locked) Int63() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Int63()
}

// Uniform returns a value in [lo, hi) drawn from src.
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Seed returns seed unchanged when non-zero, otherwise a fresh seed from
// crypto/rand.
func Seed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
	if s == 0 {
		return 1
	}
	return s
}
