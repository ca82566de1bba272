package sep2

import "reflect"

// ListAttrs reads the `all`/`results` attributes off any of this
// package's list container structs via reflection, so callers don't
// need a type switch over every list kind.
func ListAttrs(container any) (all, results int) {
	v := reflect.ValueOf(container)
	if v.Kind() != reflect.Struct {
		return 0, 0
	}
	if f := v.FieldByName("All"); f.IsValid() && f.Kind() == reflect.Int {
		all = int(f.Int())
	}
	if f := v.FieldByName("Results"); f.IsValid() && f.Kind() == reflect.Int {
		results = int(f.Int())
	}
	return all, results
}
