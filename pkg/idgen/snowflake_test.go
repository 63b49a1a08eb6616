package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewSnowflakeRejectsBadWorker(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Error("expected error for negative worker id")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Error("expected error for worker id above range")
	}
}

func TestGenerateIsUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(7)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	s, err := NewSnowflake(1)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := s.Generate()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestGenerateNumbers(t *testing.T) {
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}
	if no := s.EarningNo(); !strings.HasPrefix(no, "ERN") {
		t.Errorf("earning no = %s", no)
	}
	a, b := s.RequestNo(), s.RequestNo()
	if !strings.HasPrefix(a, "PKR") || a == b {
		t.Errorf("request nos = %s, %s", a, b)
	}
}
