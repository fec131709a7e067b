package pppoe

import "errors"

// ErrMalformedFrame is returned by Decode when a TLV extends beyond the
// declared payload or the frame, or when a tag type repeats.
var ErrMalformedFrame = errors.New("pppoe: malformed discovery frame")

// ErrWrongServiceName is returned by the discovery handler when a PADI
// requests a service name the policy does not offer and the policy does
// not allow echoing arbitrary service names.
var ErrWrongServiceName = errors.New("pppoe: wrong service name")

// ErrUnexpectedSession is returned when a PADR does not match any pending
// cookie for its (MAC, VLANs) tuple.
var ErrUnexpectedSession = errors.New("pppoe: unexpected session, no matching pending entry")

// ErrExhausted is returned when the session registry has no free session
// IDs left to allocate.
var ErrExhausted = errors.New("pppoe: session ID space exhausted")
