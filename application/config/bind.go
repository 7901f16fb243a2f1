package config

import (
	stdErrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

var durationType = reflect.TypeOf(time.Duration(0))

// Bind decodes cfg into the struct pointed to by target, then validates it
// with `validate` tags. Keys come from the `arg` tag, else the `json` tag
// name, else the lower-cased field name. A `default` tag supplies the value
// of a missing key. Keys matching no field are rejected.
func Bind(cfg Config, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &errors.ConfigError{Err: fmt.Errorf("bind target must be a non-nil struct pointer, got %T", target)}
	}
	sv := rv.Elem()
	st := sv.Type()

	known := make(map[string]struct{}, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		key := argKey(field)
		if key == "-" {
			continue
		}
		known[key] = struct{}{}

		raw, ok := cfg[key]
		if !ok {
			def, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				continue
			}
			raw = def
		}
		if err := assign(sv.Field(i), raw); err != nil {
			return &errors.ConfigError{Field: key, Err: err}
		}
	}

	for key := range cfg {
		if _, ok := known[key]; !ok {
			return &errors.ConfigError{Field: key, Err: fmt.Errorf("unknown argument")}
		}
	}

	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) && len(verrs) > 0 {
			f, _ := st.FieldByName(verrs[0].StructField())
			return &errors.ConfigError{Field: argKey(f), Err: err}
		}
		return &errors.ConfigError{Err: err}
	}
	return nil
}

func argKey(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("arg"); ok && tag != "" {
		return tag
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func assign(dst reflect.Value, raw any) error {
	if v := reflect.ValueOf(raw); v.IsValid() && v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}

	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("cannot use %T as %s", raw, dst.Type())
	}

	if dst.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Bool:
		b, ok := ParseBool(s)
		if !ok {
			return fmt.Errorf("%q is not a boolean (on/off)", s)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 0, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(s, 0, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", dst.Type())
		}
		var parts []string
		if s != "" {
			parts = strings.Split(s, ":")
		}
		dst.Set(reflect.ValueOf(parts).Convert(dst.Type()))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Type())
	}
	return nil
}
