// Package geoip 提供基于 MaxMind 格式数据库的 IP 地理位置查询能力
package geoip

// Record 一次成功查询解码出的地理位置记录
//
// 字段与 MMDB city 结构对应，数据库对不同 IP 的覆盖程度不同，
// 任意子记录都可能缺失（零值），投影层需要容忍空值。
type Record struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Continent struct {
		Code  string            `maxminddb:"code"`
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"continent"`
	Country struct {
		IsoCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Subdivisions []Subdivision `maxminddb:"subdivisions"`
	Postal       struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"postal"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
		MetroCode uint    `maxminddb:"metro_code"`
		TimeZone  string  `maxminddb:"time_zone"`
	} `maxminddb:"location"`
}

// Subdivision 行政区划（州/省）
type Subdivision struct {
	IsoCode string            `maxminddb:"iso_code"`
	Names   map[string]string `maxminddb:"names"`
}

// CityName 返回英文城市名，缺失时返回空串
func (r *Record) CityName() string {
	return r.City.Names["en"]
}

// CountryName 返回英文国家名
func (r *Record) CountryName() string {
	return r.Country.Names["en"]
}

// ContinentName 返回英文大洲名
func (r *Record) ContinentName() string {
	return r.Continent.Names["en"]
}

// MostSpecificSubdivision 返回粒度最细的行政区划
//
// MMDB 中 subdivisions 按从粗到细排列，取最后一个。
func (r *Record) MostSpecificSubdivision() (Subdivision, bool) {
	if len(r.Subdivisions) == 0 {
		return Subdivision{}, false
	}
	return r.Subdivisions[len(r.Subdivisions)-1], true
}
