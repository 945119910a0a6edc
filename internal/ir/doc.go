// Package ir provides the runtime value model for treeq.
//
// This package contains the scalar Value types, the nested Result
// representation produced by evaluation, and their JSON and canonical
// encodings. ir imports nothing internal except qerror, so every other
// package may depend on it without cycles.
//
// Key design constraints:
//   - Value and Result are sealed interfaces; exhaustive type switches are expected
//   - Values and Results are immutable once constructed
//   - Object fields keep insertion order and names are unique
//   - Missing ("no value") and Scalar{Null} ("null value") are distinct Results
//     but propagate identically through arithmetic
package ir
