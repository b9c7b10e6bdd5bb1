package manager

import (
	"errors"
	"net/http"
)

// ErrStopped is returned by Stream.Next after a cooperative stop, either
// requested by the consumer or forced by a newer completion.
var ErrStopped = errors.New("completion stopped")

// notLoadedError signals a completion requested before the selected engine
// finished loading (409).
type notLoadedError struct{ id string }

func (e notLoadedError) Error() string {
	if e.id == "" {
		return "no engine selected"
	}
	return "engine not loaded: " + e.id
}

func (e notLoadedError) StatusCode() int { return http.StatusConflict }

// ErrNotLoaded constructs a notLoadedError.
func ErrNotLoaded(id string) error { return notLoadedError{id: id} }

// IsNotLoaded reports whether err indicates the engine is not ready.
func IsNotLoaded(err error) bool {
	var e notLoadedError
	return errors.As(err, &e)
}

// busyError signals an operation refused while a completion runs (409).
type busyError struct{ what string }

func (e busyError) Error() string { return "busy: " + e.what }

func (e busyError) StatusCode() int { return http.StatusConflict }

// ErrBusy constructs a busyError.
func ErrBusy(what string) error { return busyError{what: what} }

// IsBusy reports whether err indicates a refused concurrent operation.
func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

// engineUnavailableError signals a missing, failed or stalled engine host
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type engineUnavailableError struct{ msg string }

func (e engineUnavailableError) Error() string { return e.msg }

func (e engineUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrEngineUnavailable constructs an engineUnavailableError.
func ErrEngineUnavailable(msg string) error { return engineUnavailableError{msg: msg} }

// IsEngineUnavailable reports whether err indicates the engine host failed.
func IsEngineUnavailable(err error) bool {
	var e engineUnavailableError
	return errors.As(err, &e)
}

// loadError carries the engine's load error text (502).
type loadError struct{ id, msg string }

func (e loadError) Error() string { return "load " + e.id + " failed: " + e.msg }

func (e loadError) StatusCode() int { return http.StatusBadGateway }

// ErrLoadError constructs a loadError.
func ErrLoadError(id, msg string) error { return loadError{id: id, msg: msg} }

// IsLoadError reports whether err is a failed engine load.
func IsLoadError(err error) bool {
	var e loadError
	return errors.As(err, &e)
}

// IsStopped reports whether err is a cooperative stop.
func IsStopped(err error) bool { return errors.Is(err, ErrStopped) }
