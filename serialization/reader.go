package serialization

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// FieldReader reads named attributes off a record. Compiled serializers use
// it to access maps, structs and user types uniformly. Types may implement
// it directly to bypass reflection.
type FieldReader interface {
	Field(name string) (interface{}, bool)
}

type mapReader map[string]interface{}

func (m mapReader) Field(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// structDescriptor maps attribute names to field indices for one struct
// type. Descriptors are built once per type and cached for the life of the
// process.
type structDescriptor map[string][]int

var structDescriptors sync.Map // reflect.Type -> structDescriptor

func describeStruct(t reflect.Type) structDescriptor {
	if d, ok := structDescriptors.Load(t); ok {
		return d.(structDescriptor)
	}
	d := make(structDescriptor, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("influx"); ok && tag != "" && tag != "-" {
			name = tag
		}
		d[name] = f.Index
	}
	structDescriptors.Store(t, d)
	return d
}

type structReader struct {
	v    reflect.Value
	desc structDescriptor
}

func (r structReader) Field(name string) (interface{}, bool) {
	idx, ok := r.desc[name]
	if !ok {
		return nil, false
	}
	f := r.v.FieldByIndex(idx)
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return nil, true
		}
		f = f.Elem()
	}
	return f.Interface(), true
}

// readerFor wraps a record in the appropriate FieldReader adapter.
func readerFor(rec interface{}) (FieldReader, error) {
	switch r := rec.(type) {
	case FieldReader:
		return r, nil
	case map[string]interface{}:
		return mapReader(r), nil
	}
	v := reflect.ValueOf(rec)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.Wrap(ErrInvalidInput, "nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrInvalidInput, "cannot read attributes of %T", rec)
	}
	return structReader{v: v, desc: describeStruct(v.Type())}, nil
}
