// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

const memoryScheme = "mem://"

// Object is a stored object as kept by MemorySink.
type Object struct {
	Data        []byte
	ContentType string
}

// MemorySink keeps objects in memory and returns mem:// URIs. It is used by
// tests and dry runs.
type MemorySink struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string]Object)}
}

func (s *MemorySink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[clean] = Object{Data: cp, ContentType: contentType}
	return memoryScheme + clean, nil
}

// Get returns the object referenced by a URI returned from Put, or by its
// plain name.
func (s *MemorySink) Get(uri string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[strings.TrimPrefix(uri, memoryScheme)]
	return obj, ok
}

// Names returns the stored names, sorted.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for n := range s.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
