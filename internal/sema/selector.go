package sema

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/target"
)

// Keccak256 is the hash used for wire-compatible selectors and event
// topics.
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// FunctionSelector computes the dispatch key for a function: the first
// four bytes of keccak256(signature) on wire-compatible targets, or the
// eight-byte sha256("global:name") discriminator on solana. An explicit
// @selector override wins.
func (ns *Namespace) FunctionSelector(fn *Function) []byte {
	if fn.SelectorOverride != nil {
		return fn.SelectorOverride
	}
	if ns.Target.Kind == target.Solana {
		name := fn.Name
		switch fn.Kind {
		case ast.FnConstructor:
			name = "new"
		case ast.FnFallback:
			name = "fallback"
		case ast.FnReceive:
			name = "receive"
		}
		sum := sha256.Sum256([]byte("global:" + name))
		return sum[:8]
	}
	sum := Keccak256([]byte(ns.Signature(fn)))
	return sum[:4]
}

// EventTopic is the first topic of a non-anonymous event on the
// polkadot target, and the event discriminator seed on solana.
func (ns *Namespace) EventTopic(ev *EventDecl) [32]byte {
	return Keccak256([]byte(ns.EventSignature(ev)))
}

// ErrorSelector is the four-byte discriminator of a user error.
func (ns *Namespace) ErrorSelector(ed *ErrorDecl) []byte {
	sum := Keccak256([]byte(ns.ErrorSignature(ed)))
	return sum[:4]
}
