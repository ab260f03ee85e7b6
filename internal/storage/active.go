// SPDX-License-Identifier: MIT

// Package storage keeps the download directory within bounds: a reaper
// deletes aged artifacts when disk pressure is high, and an ActiveFileSet
// pins files that in-flight jobs are still writing.
package storage

import "sync"

// ActiveFileSet is a refcounted set of absolute paths that must not be
// reaped. A path pinned twice needs two unpins.
type ActiveFileSet struct {
	mu    sync.Mutex
	paths map[string]int
}

func NewActiveFileSet() *ActiveFileSet {
	return &ActiveFileSet{paths: make(map[string]int)}
}

func (s *ActiveFileSet) Pin(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path]++
}

func (s *ActiveFileSet) Unpin(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths[path] <= 1 {
		delete(s.paths, path)
		return
	}
	s.paths[path]--
}

func (s *ActiveFileSet) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

func (s *ActiveFileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
