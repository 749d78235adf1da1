// Package vm implements the esch object runtime.
//
// This package contains:
//   - Type metaobjects and the type registry
//   - The common object header and object lifecycle (construct, delete)
//   - Tagged Value representation
//   - The iterator protocol containers implement
//   - A slot-arena mark-and-sweep collector
//
// Objects are ordinary Go structs that embed Header. A Type describes how
// to construct, destroy, copy, stringify, document and iterate instances;
// a type is a container exactly when it can be iterated. The Collector
// owns every object attached to it and frees unreachable ones on Recycle,
// discovering the object graph only through iterators.
package vm
