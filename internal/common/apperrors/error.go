// Package apperrors provides chainable application errors. An Error can be used
// as a template for more specific errors and can wrap underlying causes.
package apperrors

// Error is an error that can spawn and wrap other errors. Every method returns
// a new value; the receiver is never modified.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // new error using the receiver as its base
	Msg(msg string) Error                  // new message, receiver kept as a cause
	MsgErr(msg string, err ...error) Error // new message, receiver and err kept as causes
	Err(err ...error) Error                // same message, err attached as causes
	ErrorAll() string                      // message followed by every cause
	UnwrapAll() []error                    // all attached causes
}
