// Package wire implements the line-oriented JSON command protocol spoken
// between a test orchestrator and a step-execution engine.
//
// Every request is a JSON array ["command_name", argument?] and every
// response is a JSON array whose first element is "success", "fail" or
// "pending". Values are exchanged one per line over a single stream.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Response status tags.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusPending = "pending"
)

var (
	// ErrMalformedRequest is returned for a request that is not ["name", arg?].
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownCommand is returned for a request naming no registered command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument is returned when a command argument has the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCommandPanic wraps a panic recovered while running a command.
	ErrCommandPanic = errors.New("command panicked")
)

// Response is one wire response: a status tag followed by payload elements.
type Response []any

// Status returns the response's status tag, or "" for an empty response.
func (r Response) Status() string {
	if len(r) == 0 {
		return ""
	}
	s, _ := r[0].(string)
	return s
}

func successResponse(payload ...any) Response {
	return append(Response{StatusSuccess}, payload...)
}

func failResponse(payload ...any) Response {
	return append(Response{StatusFail}, payload...)
}

func pendingResponse(payload ...any) Response {
	return append(Response{StatusPending}, payload...)
}

// jsonKind is the JSON type of an undecoded value.
type jsonKind int

const (
	kindAbsent jsonKind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

func (k jsonKind) String() string {
	switch k {
	case kindAbsent:
		return "absent"
	case kindNull:
		return "null"
	case kindBool:
		return "bool"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindArray:
		return "array"
	case kindObject:
		return "object"
	default:
		return "invalid"
	}
}

// kindOf classifies a raw JSON value by its first significant byte. The value
// is assumed to be well formed; json.Decoder only hands out complete values.
func kindOf(raw json.RawMessage) jsonKind {
	b := bytes.TrimLeft(raw, " \t\r\n")
	if len(b) == 0 {
		return kindAbsent
	}
	switch b[0] {
	case 'n':
		return kindNull
	case 't', 'f':
		return kindBool
	case '"':
		return kindString
	case '[':
		return kindArray
	case '{':
		return kindObject
	default:
		return kindNumber
	}
}

// isNull reports whether an argument is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	k := kindOf(raw)
	return k == kindAbsent || k == kindNull
}

// parseRequest splits a request into its command name and raw argument.
// The argument is nil when the request carries none.
func parseRequest(raw json.RawMessage) (string, json.RawMessage, error) {
	if kindOf(raw) != kindArray {
		return "", nil, fmt.Errorf("%w: want array, got %s", ErrMalformedRequest, kindOf(raw))
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if len(elems) == 0 {
		return "", nil, fmt.Errorf("%w: empty request", ErrMalformedRequest)
	}
	if len(elems) > 2 {
		return "", nil, fmt.Errorf("%w: %d elements", ErrMalformedRequest, len(elems))
	}
	if kindOf(elems[0]) != kindString {
		return "", nil, fmt.Errorf("%w: command name is %s", ErrMalformedRequest, kindOf(elems[0]))
	}
	var name string
	if err := json.Unmarshal(elems[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	var arg json.RawMessage
	if len(elems) > 1 {
		arg = elems[1]
	}
	return name, arg, nil
}

// argObject is a decoded argument object. Keys are matched exactly.
type argObject map[string]json.RawMessage

// decodeObject decodes an argument that must be a JSON object.
func decodeObject(raw json.RawMessage) (argObject, error) {
	if k := kindOf(raw); k != kindObject {
		return nil, fmt.Errorf("%w: want object, got %s", ErrInvalidArgument, k)
	}
	var obj argObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return obj, nil
}

// requireString decodes a field that must be present and a JSON string.
func (o argObject) requireString(field string) (string, error) {
	raw, ok := o[field]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidArgument, field)
	}
	if k := kindOf(raw); k != kindString {
		return "", fmt.Errorf("%w: %s: want string, got %s", ErrInvalidArgument, field, k)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArgument, field, err)
	}
	return s, nil
}
