package geoip

// Status 单次查询的结果类别，每次查询恰好产生一种
type Status int

// 查询结果类别
const (
	// StatusFound 数据库中存在该地址的记录
	StatusFound Status = iota
	// StatusNotFound 地址合法但数据库中无记录
	StatusNotFound
	// StatusInvalidInput 输入不是合法的 IP 地址
	StatusInvalidInput
	// StatusDatabaseError 数据库结构损坏或解码失败
	StatusDatabaseError
)

// String 实现 fmt.Stringer，用于日志和指标标签
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusInvalidInput:
		return "invalid_input"
	case StatusDatabaseError:
		return "database_error"
	default:
		return "unknown"
	}
}

// Result 一次查询的完整结果
//
// Record 仅在 Status 为 StatusFound 时非空；
// Err 仅在 Status 为 StatusDatabaseError 时非空。
// 失败通过返回值传递，不使用 panic 或 error 控制流。
type Result struct {
	Status Status
	Record *Record
	Err    error
}

// Found 是否命中记录
func (r Result) Found() bool {
	return r.Status == StatusFound
}
