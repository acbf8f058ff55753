// Package protoconv converts between protobuf messages and untyped nodes:
// nested map[string]any values of the kind produced by JSON and YAML
// decoders.
//
// Importing (Populate) writes a node into a message, guided by the
// message's descriptor. Keys that are not fields are ignored, enum fields
// take labels, and scalars are cast to the field's type, so that a node
// decoded from loosely typed input (where, for example, all numbers are
// float64 or json.Number) can still populate int32 or uint64 fields.
//
// Exporting (Export) goes the other way and produces a node with an entry
// for every declared field, filling in defaults for fields that are not
// set. Enum values become labels and bytes become base64 strings, so that
// exporting and then importing yields an equal message.
//
// Both directions work with generated message types as well as dynamic
// messages (see the protoschema package for loading descriptors at
// runtime).
package protoconv
