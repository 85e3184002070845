// Package params holds the named, ordered parameter values exchanged
// between a simulation tool and a numeric optimizer, and the Parameter
// capability that applies one value to a simulation setup.
//
// A [ValueSet] is immutable. Entry i of a set corresponds to element i of
// the raw vector an optimizer works on.
package params
