package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MemoryHost is the host of URLs signed by Memory.
const MemoryHost = "blob.local.amazonaws.com"

// Memory is a process-local Store for development and tests. Its signed URLs
// look like virtual-hosted S3 URLs so DefaultMatcher recognises them.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	ttl     time.Duration
	now     func() time.Time
}

type memoryObject struct {
	payload     []byte
	contentType string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject), ttl: DefaultSignTTL, now: time.Now}
}

func (m *Memory) Put(_ context.Context, key string, payload []byte, contentType string) (string, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{payload: append([]byte(nil), payload...), contentType: contentType}
	return key, nil
}

func (m *Memory) Sign(_ context.Context, key string) (Signed, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return Signed{}, err
	}
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return Signed{}, fmt.Errorf("memory blob %s: not found", key)
	}
	expires := m.now().Add(m.ttl)
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return Signed{
		URL:       fmt.Sprintf("https://%s/%s?expires=%d", MemoryHost, strings.Join(segments, "/"), expires.Unix()),
		ExpiresAt: expires,
	}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
