package resolver

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// object is a decoded JSON object which remembers key order.
type object struct {
	keys   []string
	values map[string]any
}

func (o *object) set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}

	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.values[key] = value
}

func (o *object) string(key string) (string, bool) {
	if value, ok := o.values[key].(string); ok && value != "" {
		return value, true
	}

	return "", false
}

func (o *object) lookup(keys []string) (string, bool) {
	for _, key := range keys {
		if value, ok := o.string(key); ok {
			return value, true
		}
	}

	return "", false
}

func decodeJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	value, err := decodeValue(decoder)
	if err != nil {
		return nil, err
	}

	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("trailing data after json value")
	}

	return value, nil
}

func decodeValue(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, errors.Wrap(err, "read token")
	}

	delim, ok := token.(json.Delim)
	if !ok {
		return token, nil
	}

	switch delim {
	case '{':
		obj := new(object)
		for decoder.More() {
			token, err := decoder.Token()
			if err != nil {
				return nil, errors.Wrap(err, "read key")
			}

			key, ok := token.(string)
			if !ok {
				return nil, errors.Errorf("expected object key, got %v", token)
			}

			value, err := decodeValue(decoder)
			if err != nil {
				return nil, errors.Wrapf(err, "decode %s", key)
			}

			obj.set(key, value)
		}

		_, err := decoder.Token()
		return obj, errors.Wrap(err, "read object end")

	case '[':
		var array []any
		for decoder.More() {
			value, err := decodeValue(decoder)
			if err != nil {
				return nil, errors.Wrapf(err, "decode [%d]", len(array))
			}

			array = append(array, value)
		}

		_, err := decoder.Token()
		return array, errors.Wrap(err, "read array end")

	default:
		return nil, errors.Errorf("unexpected delimiter %s", delim)
	}
}

// findURL looks up the first candidate key at the top level,
// then in directly nested objects in document order.
// Elements of a top-level array count as nested objects.
func findURL(value any, keys []string) (string, error) {
	var nested []any
	switch value := value.(type) {
	case *object:
		if status, ok := value.values["status"].(string); ok && status == "processing" {
			return "", &Error{Kind: KindConfiguration, Err: ErrEarlyResponse}
		}

		if url, ok := value.lookup(keys); ok {
			return url, nil
		}

		for _, key := range value.keys {
			nested = append(nested, value.values[key])
		}

	case []any:
		nested = value
	}

	for _, value := range nested {
		if obj, ok := value.(*object); ok {
			if url, ok := obj.lookup(keys); ok {
				return url, nil
			}
		}
	}

	return "", newError(KindMalformedResponse, "no media url in json response")
}
