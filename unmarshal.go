package eprime

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// UnmarshalRow stores a row's cells into the struct pointed to by v.
//
// Struct tags determine how columns map to fields:
//   - `eprime:"Column Name"` - maps the named column to this field
//   - `eprime:"Column Name,required"` - fails when the column is absent
//   - `eprime:"-"` - ignores this field
//
// Untagged fields map to the column matching the field name. Cells are
// text; numeric and bool fields are converted from the cell's string form.
//
// Example:
//
//	type Trial struct {
//	    Subject  string `eprime:"Subject"`
//	    StimTime int    `eprime:"stim_time"`
//	    Correct  bool   `eprime:"correct"`
//	}
func UnmarshalRow(row *Row, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("unmarshal target must be a non-nil pointer")
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}
	return unmarshalRowStruct(row, elem)
}

// UnmarshalData realizes every row of data into the slice of structs
// pointed to by v.
func UnmarshalData(data *TabularData, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("unmarshal target must be a non-nil pointer")
	}
	sliceVal := rv.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return fmt.Errorf("unmarshal target must be a pointer to slice")
	}

	cc := NewColumnCalculator()
	cc.SetData(data)
	rows, err := cc.Rows()
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(sliceVal.Type(), len(rows), len(rows))
	for i, row := range rows {
		elem := out.Index(i)
		if elem.Kind() == reflect.Ptr {
			elem.Set(reflect.New(elem.Type().Elem()))
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return fmt.Errorf("unmarshal target must be a slice of structs")
		}
		if err := unmarshalRowStruct(row, elem); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	sliceVal.Set(out)
	return nil
}

func unmarshalRowStruct(row *Row, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		tag := field.Tag.Get("eprime")
		if tag == "-" {
			continue
		}
		colName, opts := parseTag(tag)
		if colName == "" {
			colName = field.Name
		}

		cell, err := row.Get(colName)
		if err != nil {
			if hasOption(opts, "required") {
				return fmt.Errorf("required column %s: %w", colName, err)
			}
			var notFound *ColumnNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return fmt.Errorf("column %s: %w", colName, err)
		}
		if cell == "" {
			continue
		}
		if err := setCell(fieldValue, cell); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// setCell converts a cell's text into the field's kind.
func setCell(field reflect.Value, cell string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(cell)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			// Integral floats ("3.0") still land in int fields.
			f, ferr := strconv.ParseFloat(cell, 64)
			if ferr != nil || f != float64(int64(f)) {
				return fmt.Errorf("cannot parse %q as int", cell)
			}
			n = int64(f)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as uint", cell)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float", cell)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := parseBool(cell)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Ptr:
		ptr := reflect.New(field.Type().Elem())
		if err := setCell(ptr.Elem(), cell); err != nil {
			return err
		}
		field.Set(ptr)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

func parseTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

func hasOption(opts []string, option string) bool {
	for _, opt := range opts {
		if opt == option {
			return true
		}
	}
	return false
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value: %s", s)
	}
}
