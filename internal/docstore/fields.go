package docstore

import (
	"fmt"
	"reflect"
	"strings"
)

// Fields turns a patch struct into a merge map keyed by json field names.
// Only set fields are included: non-nil pointers (dereferenced), maps and slices.
func Fields(patch any) (map[string]any, error) {
	v := reflect.ValueOf(patch)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil patch")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("patch must be a struct, got %s", v.Kind())
	}

	fields := map[string]any{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Pointer:
			if !fv.IsNil() {
				fields[name] = fv.Elem().Interface()
			}
		case reflect.Map, reflect.Slice:
			if !fv.IsNil() {
				fields[name] = fv.Interface()
			}
		}
	}

	return fields, nil
}
