package confloader

import (
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/v2"
)

var durationType = reflect.TypeOf(time.Duration(0))

// MillisecondsHook decodes bare numbers into time.Duration fields as
// milliseconds, so "request_timeout: 5000" means five seconds and -1 stays
// negative. Strings with a unit ("250ms", "2s") are left to the standard
// duration hook.
func MillisecondsHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		v := reflect.ValueOf(data)
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(v.Int()) * time.Millisecond, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(v.Uint()) * time.Millisecond, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(v.Float() * float64(time.Millisecond)), nil
		case reflect.String:
			if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
				return time.Duration(n) * time.Millisecond, nil
			}
		}
		return data, nil
	}
}

// unmarshalConf decodes into target and records unmatched keys in md.
func unmarshalConf(target any, md *mapstructure.Metadata) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				MillisecondsHook(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Metadata:         md,
			Result:           target,
			WeaklyTypedInput: true,
		},
	}
}
