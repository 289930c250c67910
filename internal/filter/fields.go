// Package filter provides GeoIP enrichment for log records.
package filter

import (
	"net"

	"github.com/houzhh15/geopipe/internal/geoip"
)

// 可投影字段名
const (
	FieldCityName      = "city_name"
	FieldCountryName   = "country_name"
	FieldContinentCode = "continent_code"
	FieldContinentName = "continent_name"
	FieldCountryCode2  = "country_code2"
	FieldCountryCode3  = "country_code3"
	FieldIP            = "ip"
	FieldPostalCode    = "postal_code"
	FieldDMACode       = "dma_code"
	FieldRegionName    = "region_name"
	FieldRegionCode    = "region_code"
	FieldTimezone      = "timezone"
	FieldLocation      = "location"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
)

// allFields 全部字段的规范顺序，fields 配置为空时使用
var allFields = []string{
	FieldCityName,
	FieldCountryName,
	FieldContinentCode,
	FieldContinentName,
	FieldCountryCode2,
	FieldCountryCode3,
	FieldIP,
	FieldPostalCode,
	FieldDMACode,
	FieldRegionName,
	FieldRegionCode,
	FieldTimezone,
	FieldLocation,
	FieldLatitude,
	FieldLongitude,
}

// accessor 从数据库记录提取单个字段值，子记录缺失时返回 nil
type accessor func(rec *geoip.Record, ip net.IP) any

// fieldAccessors 静态字段投影表
var fieldAccessors = map[string]accessor{
	FieldCityName: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.CityName())
	},
	FieldCountryName: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.CountryName())
	},
	FieldContinentCode: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.Continent.Code)
	},
	FieldContinentName: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.ContinentName())
	},
	FieldCountryCode2: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.Country.IsoCode)
	},
	// country_code3 历史上与 country_code2 相同，均为两位 ISO 码
	FieldCountryCode3: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.Country.IsoCode)
	},
	FieldIP: func(_ *geoip.Record, ip net.IP) any {
		return ip.String()
	},
	FieldPostalCode: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.Postal.Code)
	},
	FieldDMACode: func(rec *geoip.Record, _ net.IP) any {
		if rec.Location.MetroCode == 0 {
			return nil
		}
		return rec.Location.MetroCode
	},
	FieldRegionName: func(rec *geoip.Record, _ net.IP) any {
		sub, ok := rec.MostSpecificSubdivision()
		if !ok {
			return nil
		}
		return stringOrNil(sub.Names["en"])
	},
	FieldRegionCode: func(rec *geoip.Record, _ net.IP) any {
		sub, ok := rec.MostSpecificSubdivision()
		if !ok {
			return nil
		}
		return stringOrNil(sub.IsoCode)
	},
	FieldTimezone: func(rec *geoip.Record, _ net.IP) any {
		return stringOrNil(rec.Location.TimeZone)
	},
	// location 为 GeoJSON 顺序 [经度, 纬度]
	FieldLocation: func(rec *geoip.Record, _ net.IP) any {
		return []float64{rec.Location.Longitude, rec.Location.Latitude}
	},
	FieldLatitude: func(rec *geoip.Record, _ net.IP) any {
		return rec.Location.Latitude
	},
	FieldLongitude: func(rec *geoip.Record, _ net.IP) any {
		return rec.Location.Longitude
	},
}

// resolveFields 过滤掉未识别的字段名；选择为空时返回全部字段
func resolveFields(selection []string) []string {
	if len(selection) == 0 {
		return allFields
	}

	resolved := make([]string, 0, len(selection))
	for _, name := range selection {
		if _, ok := fieldAccessors[name]; ok {
			resolved = append(resolved, name)
		}
	}
	return resolved
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
