package geoip

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakeDatabase 内存伪数据库，按 ip 字符串返回预置记录
type fakeDatabase struct {
	mu      sync.Mutex
	decodes int
	records map[string]*Record
	err     error
	closed  bool
}

func (f *fakeDatabase) LookupNetwork(ip net.IP, result interface{}) (*net.IPNet, bool, error) {
	f.mu.Lock()
	f.decodes++
	f.mu.Unlock()

	if f.err != nil {
		return nil, false, f.err
	}
	rec, ok := f.records[ip.String()]
	if !ok {
		return nil, false, nil
	}
	*(result.(*Record)) = *rec
	return nil, true, nil
}

func (f *fakeDatabase) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDatabase) decodeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodes
}

func cityRecord(city, country, iso string) *Record {
	rec := &Record{}
	rec.City.Names = map[string]string{"en": city}
	rec.Country.Names = map[string]string{"en": country}
	rec.Country.IsoCode = iso
	rec.Location.Latitude = 55.75
	rec.Location.Longitude = 37.62
	rec.Location.TimeZone = "Europe/Moscow"
	return rec
}

func newTestReader(db geoDatabase, cacheSize int) *Reader {
	return &Reader{
		db:     db,
		cache:  newDecodeCache(cacheSize),
		logger: zap.NewNop(),
	}
}

func TestReader_LookupFound(t *testing.T) {
	db := &fakeDatabase{records: map[string]*Record{
		"8.8.8.8": cityRecord("Moscow", "Russia", "RU"),
	}}
	r := newTestReader(db, 10)

	result := r.Lookup(net.ParseIP("8.8.8.8"))
	if result.Status != StatusFound {
		t.Fatalf("Status = %v, want found", result.Status)
	}
	if result.Record.CityName() != "Moscow" {
		t.Errorf("CityName() = %s, want Moscow", result.Record.CityName())
	}
	if result.Record.Country.IsoCode != "RU" {
		t.Errorf("IsoCode = %s, want RU", result.Record.Country.IsoCode)
	}
}

func TestReader_LookupIdempotent(t *testing.T) {
	db := &fakeDatabase{records: map[string]*Record{
		"1.2.3.4": cityRecord("Tokyo", "Japan", "JP"),
	}}
	r := newTestReader(db, 10)

	first := r.Lookup(net.ParseIP("1.2.3.4"))
	second := r.Lookup(net.ParseIP("1.2.3.4"))

	if first.Status != StatusFound || second.Status != StatusFound {
		t.Fatal("both lookups should be found")
	}
	if first.Record.CityName() != second.Record.CityName() {
		t.Error("cache hit altered the decoded value")
	}
	if db.decodeCount() != 1 {
		t.Errorf("decode count = %d, want 1 (second lookup must hit cache)", db.decodeCount())
	}
}

func TestReader_LookupNotFoundCached(t *testing.T) {
	db := &fakeDatabase{records: map[string]*Record{}}
	r := newTestReader(db, 10)

	for i := 0; i < 3; i++ {
		result := r.Lookup(net.ParseIP("203.0.113.5"))
		if result.Status != StatusNotFound {
			t.Fatalf("Status = %v, want not_found", result.Status)
		}
		if result.Record != nil {
			t.Error("Record should be nil for not_found")
		}
	}
	// 负结果同样缓存
	if db.decodeCount() != 1 {
		t.Errorf("decode count = %d, want 1", db.decodeCount())
	}
}

func TestReader_LookupDatabaseErrorNotCached(t *testing.T) {
	db := &fakeDatabase{err: errors.New("corrupt data section")}
	r := newTestReader(db, 10)

	for i := 0; i < 2; i++ {
		result := r.Lookup(net.ParseIP("1.2.3.4"))
		if result.Status != StatusDatabaseError {
			t.Fatalf("Status = %v, want database_error", result.Status)
		}
		if result.Err == nil {
			t.Error("Err should carry the decode failure")
		}
	}
	// 错误不缓存，避免掩盖暂时性问题
	if db.decodeCount() != 2 {
		t.Errorf("decode count = %d, want 2", db.decodeCount())
	}
	if r.CacheLen() != 0 {
		t.Errorf("CacheLen() = %d, want 0", r.CacheLen())
	}
}

func TestReader_CacheBound(t *testing.T) {
	db := &fakeDatabase{records: map[string]*Record{
		"10.0.0.1": cityRecord("A", "A", "AA"),
		"10.0.0.2": cityRecord("B", "B", "BB"),
		"10.0.0.3": cityRecord("C", "C", "CC"),
	}}
	r := newTestReader(db, 2)

	r.Lookup(net.ParseIP("10.0.0.1"))
	r.Lookup(net.ParseIP("10.0.0.2"))
	r.Lookup(net.ParseIP("10.0.0.3"))

	if r.CacheLen() != 2 {
		t.Errorf("CacheLen() = %d, want 2", r.CacheLen())
	}

	// 超出容量的地址退化为直接解码，而不是失败
	result := r.Lookup(net.ParseIP("10.0.0.3"))
	if result.Status != StatusFound {
		t.Fatalf("Status = %v, want found", result.Status)
	}
	if result.Record.CityName() != "C" {
		t.Errorf("CityName() = %s, want C", result.Record.CityName())
	}
	if db.decodeCount() != 4 {
		t.Errorf("decode count = %d, want 4", db.decodeCount())
	}
}

func TestReader_ConcurrentLookups(t *testing.T) {
	records := make(map[string]*Record)
	for i := 0; i < 20; i++ {
		ip := fmt.Sprintf("192.0.2.%d", i)
		records[ip] = cityRecord(fmt.Sprintf("city-%d", i), "X", "XX")
	}
	db := &fakeDatabase{records: records}
	r := newTestReader(db, 10)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ip := net.ParseIP(fmt.Sprintf("192.0.2.%d", i%20))
				result := r.Lookup(ip)
				if result.Status != StatusFound {
					t.Errorf("Status = %v, want found", result.Status)
					return
				}
			}
		}()
	}
	wg.Wait()

	if r.CacheLen() > 10 {
		t.Errorf("CacheLen() = %d, exceeds capacity 10", r.CacheLen())
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open("/nonexistent/GeoLite2-City.mmdb", 0, zap.NewNop()); err == nil {
		t.Fatal("Open() should fail for missing database file")
	}
}
