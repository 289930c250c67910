package geoip

import (
	"testing"

	"go.uber.org/zap"
)

func newStubRegistry() (*Registry, map[string]*fakeDatabase) {
	opened := make(map[string]*fakeDatabase)
	reg := NewRegistry(zap.NewNop())
	reg.open = func(path string, cacheSize int, logger *zap.Logger) (*Reader, error) {
		db := &fakeDatabase{records: map[string]*Record{}}
		opened[path] = db
		return newTestReader(db, cacheSize), nil
	}
	return reg, opened
}

func TestRegistry_SharesReaderPerPath(t *testing.T) {
	reg, opened := newStubRegistry()

	a, err := reg.Reader("/data/GeoLite2-City.mmdb", 100)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	b, err := reg.Reader("/data/GeoLite2-City.mmdb", 500)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}

	if a != b {
		t.Error("same path must share one reader instance")
	}
	if len(opened) != 1 {
		t.Errorf("opened %d databases, want 1", len(opened))
	}

	c, err := reg.Reader("/data/other.mmdb", 100)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	if c == a {
		t.Error("distinct paths must not share a reader")
	}
}

func TestRegistry_EmptyPath(t *testing.T) {
	reg, _ := newStubRegistry()
	if _, err := reg.Reader("", 0); err == nil {
		t.Fatal("Reader() should fail for empty path")
	}
}

func TestRegistry_Close(t *testing.T) {
	reg, opened := newStubRegistry()

	reg.Reader("/data/a.mmdb", 10)
	reg.Reader("/data/b.mmdb", 10)

	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for path, db := range opened {
		if !db.closed {
			t.Errorf("database %s not closed", path)
		}
	}

	// 关闭后再次请求会重新打开
	reg.Reader("/data/a.mmdb", 10)
	if len(opened) != 3 {
		t.Errorf("opened %d databases, want 3", len(opened))
	}
}
