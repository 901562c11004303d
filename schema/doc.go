// Package schema parses the subset of WIT that describes bridge exports.
//
// Supported items:
//
//	package ns:name@1.0.0;              ignored
//	use ns:pkg/iface.{name};            ignored
//	record point { x: u32, y: u32 }
//	type id = u64;
//	[export] name: func(a: t, ...) -> t;
//	import name: func(...);             ignored, imports are not callable
//	world w { ... } / interface i { ... }
//
// Types are the WIT primitives, char, string, list<T> and named records or
// aliases. Names may be used before they are declared. Functions inside
// worlds and interfaces keep their plain names.
//
// Signatures are produced as wit.Type values; Function.Signature converts
// them to canon descriptors for the registry.
package schema
