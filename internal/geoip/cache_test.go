package geoip

import (
	"fmt"
	"sync"
	"testing"
)

func TestDecodeCache_PutGet(t *testing.T) {
	c := newDecodeCache(10)

	r := Result{Status: StatusFound, Record: &Record{}}
	if !c.put("key-1", r) {
		t.Fatal("put() = false, want true")
	}

	got, ok := c.get("key-1")
	if !ok {
		t.Fatal("get() miss, want hit")
	}
	if got.Status != StatusFound || got.Record == nil {
		t.Errorf("get() = %+v, want cached found result", got)
	}

	if _, ok := c.get("key-2"); ok {
		t.Error("get() hit for absent key")
	}
}

func TestDecodeCache_CapacityBound(t *testing.T) {
	c := newDecodeCache(2)

	if !c.put("a", Result{Status: StatusNotFound}) {
		t.Error("first put refused")
	}
	if !c.put("b", Result{Status: StatusNotFound}) {
		t.Error("second put refused")
	}
	if c.put("c", Result{Status: StatusNotFound}) {
		t.Error("put beyond capacity accepted")
	}
	if c.len() != 2 {
		t.Errorf("len() = %d, want 2", c.len())
	}

	// 已有 key 重复写入不算新增
	if !c.put("a", Result{Status: StatusNotFound}) {
		t.Error("put for existing key refused")
	}
	if c.len() != 2 {
		t.Errorf("len() = %d after re-put, want 2", c.len())
	}
}

func TestDecodeCache_InvalidCapacity(t *testing.T) {
	c := newDecodeCache(0)
	if c.capacity != DefaultCacheSize {
		t.Errorf("capacity = %d, want %d", c.capacity, DefaultCacheSize)
	}
}

func TestDecodeCache_Concurrent(t *testing.T) {
	c := newDecodeCache(50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%60)
				c.put(key, Result{Status: StatusNotFound})
				c.get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.len() > 50 {
		t.Errorf("len() = %d, exceeds capacity 50", c.len())
	}
}
