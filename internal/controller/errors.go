package controller

import "fmt"

// LaunchError reports that the process manager refused to create or
// start a service at all — distinct from "created but not yet healthy".
// Fatal: the run aborts immediately.
type LaunchError struct {
	Service string
	Wave    int // 1-based startup wave
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("startup wave %d: service %q: launch: %v", e.Wave, e.Service, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ReadinessTimeout reports that a service never became healthy within
// its allotted time. Fatal for startup; shutdown handles slow services
// by escalating instead.
type ReadinessTimeout struct {
	Service string
	Wave    int // 1-based startup wave
	Err     error
}

func (e *ReadinessTimeout) Error() string {
	return fmt.Sprintf("startup wave %d: service %q: %v", e.Wave, e.Service, e.Err)
}

func (e *ReadinessTimeout) Unwrap() error { return e.Err }

// TransportError reports that a status or probe query could not even be
// attempted — the manager itself was unreachable.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("service %q: status query: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
