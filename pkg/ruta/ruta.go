// Package ruta is the embedding surface for hosts that compile and run
// routing policies. A Host collects the external types the policies may
// touch; sealing it fixes that surface, after which any number of policy
// units can be compiled against it and run concurrently.
package ruta

import (
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// Type is a policy-language type.
type Type = types.Type

// Policy type singletons and constructors for host registrations.
var (
	Bool         = types.Bool
	Int          = types.Int
	String       = types.String
	IpAddr       = types.IpAddr
	Prefix       = types.Prefix
	PrefixLength = types.PrefixLength
	Asn          = types.Asn
	AsPath       = types.AsPath
	Community    = types.Community
)

// ListOf returns the list type over elem.
func ListOf(elem Type) Type { return &types.List{Elem: elem} }

// Value is a runtime value crossing the host boundary.
type Value = vm.Value

// Value constructors and the outcome surface, re-exported so hosts need
// only this package.
var (
	BoolVal      = vm.BoolVal
	IntVal       = vm.IntVal
	StringVal    = vm.StringVal
	AddrVal      = vm.AddrVal
	PrefixVal    = vm.PrefixVal
	AsnVal       = vm.AsnVal
	CommunityVal = vm.CommunityVal
	AsPathVal    = vm.AsPathVal
	ListVal      = vm.ListVal
	ExternalVal  = vm.ExternalVal
)

// Outcome is how an invocation ended: accept, reject, or a returned value.
type Outcome = vm.Outcome

type OutcomeKind = vm.OutcomeKind

const (
	OutcomeAccept = vm.OutcomeAccept
	OutcomeReject = vm.OutcomeReject
	OutcomeReturn = vm.OutcomeReturn
)

// Fault is a runtime failure; use errors.As to classify.
type Fault = vm.Fault

type FaultKind = vm.FaultKind

const (
	FaultResourceExhausted = vm.FaultResourceExhausted
	FaultExternalCall      = vm.FaultExternalCall
	FaultArithmetic        = vm.FaultArithmetic
	FaultInvalidState      = vm.FaultInvalidState
)

// Diagnostic is a compile-time finding.
type Diagnostic = diag.Diagnostic
