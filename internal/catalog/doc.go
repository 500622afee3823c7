// Package catalog compiles the declarative table of record types and their
// indexes from CUE.
//
// A catalog file declares sub-record messages and record types:
//
//	messages: Label: fields: {
//		key: kind:   "string"
//		value: kind: "string"
//	}
//
//	types: Seed: {
//		table: "seed"
//		label: "meta.label"
//		fields: {
//			id: kind: "string"
//			meta: {kind: "message", message: "Meta"}
//		}
//		indexes: name: {paths: ["meta.name"], ignore_case: true}
//	}
//
// Every file is unified with the constraints in schema.cue before it is
// compiled. The crawler control plane catalog is embedded and returned by
// Crawler. Catalogs are built once at startup and are read-only afterwards.
package catalog
