package restclient

import (
	"errors"
	"fmt"

	"github.com/zencamp/zencamp/internal/common/apperrors"
)

// ErrorKind classifies failures of Invoke and Interpret.
type ErrorKind int

const (
	KindUnknownOperation ErrorKind = iota + 1
	KindUnexpectedParameter
	KindTransport
	KindAuthentication
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnknownOperation:
		return "unknown operation"
	case KindUnexpectedParameter:
		return "unexpected parameter"
	case KindTransport:
		return "transport error"
	case KindAuthentication:
		return "authentication error"
	case KindAPI:
		return "api error"
	}
	return "unknown error kind"
}

var (
	// ErrRestClient is the base error for all client failures.
	ErrRestClient apperrors.Error = apperrors.New("rest client error")

	// ErrUnknownOperation is matched by errors for names missing from the table.
	ErrUnknownOperation apperrors.Error = ErrRestClient.New("unknown operation")

	// ErrUnexpectedParameter is matched by errors for arguments that are
	// neither placeholders nor allowed query parameters.
	ErrUnexpectedParameter apperrors.Error = ErrRestClient.New("unexpected parameter")

	// ErrTransport is matched by errors where no response was obtained.
	ErrTransport apperrors.Error = ErrRestClient.New("transport error")

	// ErrAuthentication is matched by every 401 response.
	ErrAuthentication apperrors.Error = ErrRestClient.New("authentication error")

	// ErrAPI is matched by any other unexpected status.
	ErrAPI apperrors.Error = ErrRestClient.New("api error")

	// ErrInvalidResponse is returned when a successful response body is not JSON.
	ErrInvalidResponse apperrors.Error = ErrRestClient.New("invalid response body")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnknownOperation:
		return ErrUnknownOperation
	case KindUnexpectedParameter:
		return ErrUnexpectedParameter
	case KindTransport:
		return ErrTransport
	case KindAuthentication:
		return ErrAuthentication
	case KindAPI:
		return ErrAPI
	}
	return ErrRestClient
}

// Error is the single error type returned by the client. Kind selects which
// of the remaining fields are meaningful.
type Error struct {
	Kind       ErrorKind
	Operation  string // operation name, when known
	Param      string // offending parameter for KindUnexpectedParameter
	StatusCode int    // actual status for KindAPI and KindAuthentication
	Body       string // raw response content for KindAPI and KindAuthentication
	Err        error  // underlying cause for KindTransport
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownOperation:
		return fmt.Sprintf("operation %q does not exist", e.Operation)
	case KindUnexpectedParameter:
		return fmt.Sprintf("%s() got an unexpected parameter %q", e.Operation, e.Param)
	case KindTransport:
		if e.Err != nil {
			return "transport error: " + e.Err.Error()
		}
		return "Response Not Found"
	case KindAuthentication:
		return "authentication failed: " + e.Body
	case KindAPI:
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Body)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind and its ancestors.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind.sentinel(), target)
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

func unknownOperation(name string) *Error {
	return &Error{Kind: KindUnknownOperation, Operation: name}
}

func unexpectedParameter(param, operation string) *Error {
	return &Error{Kind: KindUnexpectedParameter, Operation: operation, Param: param}
}

func transportError(cause error) *Error {
	return &Error{Kind: KindTransport, Err: cause}
}
