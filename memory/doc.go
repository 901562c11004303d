// Package memory provides bounds-checked access to an instance's linear
// memory.
//
// Every operation re-reads the current memory size: guest calls, including
// the reallocator, may grow memory between two accesses. The accessor never
// grows memory itself and never reads or writes a partial range.
package memory
