package logger

import (
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindStrings
	kindInt
	kindFloat
	kindBool
	kindTime
	kindError
	kindAny
)

// Field is one structured key/value. It writes itself to a zerolog event
// and hands a plain value to the collector.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	strs []string
	num  int64
	flt  float64
	at   time.Time
	err  error
	val  interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindStrings:
		e.Strs(f.Key, f.strs)
	case kindInt:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindBool:
		e.Bool(f.Key, f.num == 1)
	case kindTime:
		e.Time(f.Key, f.at)
	case kindError:
		e.AnErr(f.Key, f.err)
	default:
		e.Interface(f.Key, f.val)
	}
}

// value is what the collector stores and hashes.
func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindStrings:
		return f.strs
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.num == 1
	case kindTime:
		return f.at.Format(time.RFC3339)
	case kindError:
		if f.err == nil {
			return ""
		}
		return f.err.Error()
	default:
		return f.val
	}
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }

func Strings(key string, value []string) Field { return Field{Key: key, kind: kindStrings, strs: value} }

func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }

func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }

func Bool(key string, value bool) Field {
	f := Field{Key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

// Duration logs whole milliseconds; name keys accordingly ("latency_ms").
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, kind: kindInt, num: value.Milliseconds()}
}

func Time(key string, value time.Time) Field { return Field{Key: key, kind: kindTime, at: value} }

// Error is keyed "error". A nil err logs nothing.
func Error(err error) Field { return Field{Key: zerolog.ErrorFieldName, kind: kindError, err: err} }

func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, val: value} }
