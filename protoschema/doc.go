// Package protoschema describes protobuf message types in the terms used by
// the protoconv package, and provides the registries from which those types
// are obtained.
//
// # Field views
//
// Describe and FieldOf resolve a protoreflect.FieldDescriptor into a Field,
// which reports the field's Label (Singular, Repeated, or Map), its
// FieldType (scalar, enum, or message), its ScalarType, and, for enums, an
// EnumTable that translates between labels and numbers. The views are plain
// values computed on demand; nothing is cached, so they are safe to use from
// multiple goroutines.
//
// # Registries
//
// A Registry holds file descriptors and the dynamic message types defined
// in them. Registries can be created in several ways:
//   - Compile parses and links .proto source files.
//   - LoadProtoset and FromFileDescriptorSet read compiled descriptor sets,
//     such as those produced by "protoc --descriptor_set_out".
//   - FromServerReflection downloads descriptors from a gRPC server that
//     exposes the server reflection service.
//   - GlobalRegistry exposes the types linked into the current program.
//
// Messages created by a Registry are dynamicpb messages, except for the
// global registry, which returns the generated Go types.
package protoschema
