package state

import (
	"encoding/json"
	"reflect"

	"github.com/aretw0/arbor/pkg/domain"
)

// encode serializes c as a JSON object. Entries that cannot be represented in
// JSON (handlers, host nodes, channels) are left out and reported in skipped.
func encode(c domain.Context) (data []byte, skipped []string, err error) {
	doc := make(map[string]json.RawMessage, len(c))
	for k, v := range c {
		if !serializable(v) {
			skipped = append(skipped, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			skipped = append(skipped, k)
			continue
		}
		doc[k] = raw
	}
	data, err = json.Marshal(doc)
	return data, skipped, err
}

func decode(data []byte) (domain.Context, error) {
	var c domain.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func serializable(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	case reflect.Pointer:
		// Pointers into the host tree are cyclic.
		return reflect.TypeOf(v).Elem().Kind() != reflect.Struct || isMarshaler(v)
	}
	return true
}

func isMarshaler(v any) bool {
	_, ok := v.(json.Marshaler)
	return ok
}
