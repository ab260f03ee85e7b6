// SPDX-License-Identifier: MIT

package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{MetadataRPM: 100, DownloadRPM: 10, BurstCapacity: 20}
}

func TestBurstThenDeny(t *testing.T) {
	l := New(testConfig())

	allowed := 0
	var denied Decision
	for i := 0; i < 21; i++ {
		d := l.Admit("key-a", CategoryMetadata)
		if d.Allowed {
			allowed++
		} else {
			denied = d
		}
	}

	assert.Equal(t, 20, allowed)
	assert.False(t, denied.Allowed)
	// 100 rpm refills one token in 0.6s; Retry-After rounds up to 1s.
	assert.Equal(t, 1, denied.RetryAfterSeconds())
}

func TestDenialDoesNotConsumeTokens(t *testing.T) {
	l := New(Config{MetadataRPM: 60, DownloadRPM: 60, BurstCapacity: 2})

	assert.True(t, l.Admit("k", CategoryDownload).Allowed)
	assert.True(t, l.Admit("k", CategoryDownload).Allowed)

	// Repeated denials must not push the retry horizon further out.
	first := l.Admit("k", CategoryDownload)
	assert.False(t, first.Allowed)
	for i := 0; i < 10; i++ {
		d := l.Admit("k", CategoryDownload)
		assert.False(t, d.Allowed)
		assert.LessOrEqual(t, d.RetryAfter, time.Second+100*time.Millisecond)
	}
}

func TestCategoriesIndependent(t *testing.T) {
	l := New(Config{MetadataRPM: 100, DownloadRPM: 10, BurstCapacity: 1})

	assert.True(t, l.Admit("k", CategoryMetadata).Allowed)
	assert.False(t, l.Admit("k", CategoryMetadata).Allowed)

	// download bucket untouched by metadata exhaustion
	assert.True(t, l.Admit("k", CategoryDownload).Allowed)
}

func TestKeysIndependent(t *testing.T) {
	l := New(Config{MetadataRPM: 100, DownloadRPM: 10, BurstCapacity: 1})

	assert.True(t, l.Admit("a", CategoryMetadata).Allowed)
	assert.False(t, l.Admit("a", CategoryMetadata).Allowed)
	assert.True(t, l.Admit("b", CategoryMetadata).Allowed)
}

func TestConcurrentAdmissionsRespectCapacity(t *testing.T) {
	l := New(Config{MetadataRPM: 60, DownloadRPM: 60, BurstCapacity: 10})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("k", CategoryMetadata).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 10 burst tokens plus at most one refilled during the race.
	assert.GreaterOrEqual(t, allowed, 10)
	assert.LessOrEqual(t, allowed, 11)
}
