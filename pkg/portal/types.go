package portal

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// OutputFormat is the value of the "f" field sent with every request.
const OutputFormat = "json"

// Object is a JSON object returned by the portal. The schema is defined by
// the server, so values are accessed through the typed helpers rather than
// through Go structs.
type Object map[string]interface{}

// GetString returns the string stored under key, or "" when the key is
// missing or not a string.
func (o Object) GetString(key string) string {
	switch value := o[key].(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// GetInt returns the integer stored under key. JSON numbers and numeric
// strings are converted; anything else yields 0.
func (o Object) GetInt(key string) int {
	switch value := o[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case int64:
		return int(value)
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			f, _ := value.Float64()

			return int(f)
		}

		return int(n)
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}

		return n
	default:
		return 0
	}
}

// GetBool returns the boolean stored under key.
func (o Object) GetBool(key string) bool {
	switch value := o[key].(type) {
	case bool:
		return value
	case string:
		b, _ := strconv.ParseBool(value)

		return b
	default:
		return false
	}
}

// GetList returns the list stored under key, or nil.
func (o Object) GetList(key string) []interface{} {
	list, _ := o[key].([]interface{})

	return list
}

// GetStrings returns the string members of the list stored under key.
func (o Object) GetStrings(key string) []string {
	list := o.GetList(key)
	if list == nil {
		return nil
	}

	out := make([]string, 0, len(list))

	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// GetObject returns the nested object stored under key, or nil.
func (o Object) GetObject(key string) Object {
	switch value := o[key].(type) {
	case Object:
		return value
	case map[string]interface{}:
		return Object(value)
	default:
		return nil
	}
}

// GetObjects returns the object members of the list stored under key.
func (o Object) GetObjects(key string) []Object {
	list := o.GetList(key)
	out := make([]Object, 0, len(list))

	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Object(m))
		}
	}

	return out
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]

	return ok
}

// Keys returns the object's keys in sorted order.
func (o Object) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}

	out, _ := deepCopy(map[string]interface{}(o)).(map[string]interface{})

	return Object(out)
}

// Project returns a copy containing only the named keys.
func (o Object) Project(keys ...string) Object {
	out := make(Object, len(keys))

	for _, key := range keys {
		if value, ok := o[key]; ok {
			out[key] = value
		}
	}

	return out
}

// Decode copies the object into a struct using its json tags. Numbers and
// strings are converted weakly.
func (o Object) Decode(into interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           into,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	err = decoder.Decode(map[string]interface{}(o))
	if err != nil {
		return fmt.Errorf("failed to decode object: %w", err)
	}

	return nil
}

func deepCopy(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, inner := range typed {
			out[key] = deepCopy(inner)
		}

		return out
	case Object:
		return Object(deepCopy(map[string]interface{}(typed)).(map[string]interface{}))
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, inner := range typed {
			out[i] = deepCopy(inner)
		}

		return out
	default:
		return value
	}
}

// Form is the key/value body of a request. A new Form is built for every call.
type Form map[string]interface{}

// NewForm returns a form carrying the output format marker.
func NewForm() Form {
	return Form{"f": OutputFormat}
}

// Set stores value under key and returns the form for chaining.
func (f Form) Set(key string, value interface{}) Form {
	f[key] = value

	return f
}

// SetOptional stores value only when it is not the zero value of its type.
func (f Form) SetOptional(key string, value interface{}) Form {
	if !isZero(value) {
		f[key] = value
	}

	return f
}

// Merge copies every entry of other into the form.
func (f Form) Merge(other map[string]interface{}) Form {
	for key, value := range other {
		f[key] = value
	}

	return f
}

// Clone returns a shallow copy of the form.
func (f Form) Clone() Form {
	return maps.Clone(f)
}

// Keys returns the form's keys in sorted order.
func (f Form) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Values converts the form into url.Values using Stringify.
func (f Form) Values() url.Values {
	values := make(url.Values, len(f))
	for key, value := range f {
		values.Set(key, Stringify(value))
	}

	return values
}

// Encode returns the form as an application/x-www-form-urlencoded string.
func (f Form) Encode() string {
	return f.Values().Encode()
}

// Stringify renders a form value the way the portal expects it: nil is
// empty, lists are joined with ", ", booleans are lowercase.
func Stringify(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case *bool:
		if typed == nil {
			return ""
		}

		return strconv.FormatBool(*typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case time.Duration:
		return strconv.FormatInt(int64(typed/time.Minute), 10)
	case []string:
		return strings.Join(typed, ", ")
	case []interface{}:
		parts := make([]string, len(typed))
		for i, item := range typed {
			parts[i] = Stringify(item)
		}

		return strings.Join(parts, ", ")
	case map[string]interface{}, Object:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(encoded)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func isZero(value interface{}) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case bool:
		return !typed
	case *bool:
		return typed == nil
	case int:
		return typed == 0
	case int64:
		return typed == 0
	case float64:
		return typed == 0
	case []string:
		return len(typed) == 0
	case []interface{}:
		return len(typed) == 0
	case map[string]interface{}:
		return len(typed) == 0
	case Object:
		return len(typed) == 0
	default:
		return false
	}
}

// Upload describes a file attached to a multipart request.
type Upload struct {
	// Field is the form field name, e.g. "thumbnail" or "file".
	Field string
	// Source is a local path or an http(s) URL. Remote sources are fetched
	// to a local file before encoding.
	Source string
	// FileName is the file name sent to the server. The Content-Type of the
	// part is guessed from its extension.
	FileName string
}

// Response is the result of a transport call. Value holds the parsed JSON
// document, or nil when the body was not parsed.
type Response struct {
	StatusCode int
	Raw        []byte
	Value      interface{}
}

// Object returns the parsed body as an Object, or nil when it is not one.
func (r *Response) Object() Object {
	if r == nil {
		return nil
	}

	switch value := r.Value.(type) {
	case map[string]interface{}:
		return Object(value)
	case Object:
		return value
	default:
		return nil
	}
}

// SessionState is a snapshot of an authenticated session that can be handed
// to another connection.
type SessionState struct {
	Username   string    `json:"username"             yaml:"username"`
	Password   string    `json:"-"                    yaml:"-"`
	Token      string    `json:"token"                yaml:"token"`
	Expiration int       `json:"expiration"           yaml:"expiration"`
	ExpiresAt  time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}
