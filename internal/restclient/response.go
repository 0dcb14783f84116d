package restclient

import (
	"bytes"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResponseMeta is the part of an HTTP response the interpreter looks at.
type ResponseMeta struct {
	StatusCode int
	Location   string // value of the Location header, if any
}

// ResultKind tells which field of a Result carries the payload.
type ResultKind int

const (
	ResultStatus   ResultKind = iota // empty body, Status holds the reason phrase
	ResultLocation                   // Location holds the created resource URL
	ResultJSON                       // Value and Raw hold the parsed body
)

// Result is the successful outcome of an operation.
type Result struct {
	Kind     ResultKind
	Location string
	Value    any    // parsed JSON body
	Raw      []byte // trimmed JSON body
	Status   string // standard reason phrase
}

// JSON returns the body for path queries. It is empty unless Kind is ResultJSON.
func (r Result) JSON() gjson.Result {
	return gjson.ParseBytes(r.Raw)
}

// String renders the payload: the location, the JSON body or the reason phrase.
func (r Result) String() string {
	switch r.Kind {
	case ResultLocation:
		return r.Location
	case ResultJSON:
		return string(r.Raw)
	}
	return r.Status
}

// Interpret turns a raw response into a Result or a typed *Error. A 401 is
// always reported as KindAuthentication, whatever status was expected.
// Interpret has no side effects.
func Interpret(meta *ResponseMeta, content []byte, expected int) (Result, error) {
	if meta == nil {
		return Result{}, transportError(nil)
	}

	if meta.StatusCode == http.StatusUnauthorized {
		return Result{}, &Error{Kind: KindAuthentication, StatusCode: meta.StatusCode, Body: string(content)}
	}
	if meta.StatusCode != expected {
		return Result{}, &Error{Kind: KindAPI, StatusCode: meta.StatusCode, Body: string(content)}
	}

	if meta.Location != "" {
		return Result{Kind: ResultLocation, Location: meta.Location}, nil
	}

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return Result{}, ErrInvalidResponse.Err(err)
		}
		raw := make([]byte, len(trimmed))
		copy(raw, trimmed)
		return Result{Kind: ResultJSON, Value: v, Raw: raw}, nil
	}

	return Result{Kind: ResultStatus, Status: reasonPhrase(meta.StatusCode)}, nil
}

func reasonPhrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return strconv.Itoa(code)
}
