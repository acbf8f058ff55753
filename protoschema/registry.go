package protoschema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrNotMessage is returned when a name resolves to a descriptor that is
// not a message.
var ErrNotMessage = errors.New("not a message type")

// ErrReadOnly is returned when trying to register files with the registry
// returned by GlobalRegistry.
var ErrReadOnly = errors.New("registry is read-only")

// Registry holds file descriptors along with dynamic types for all messages,
// enums, and extensions they define. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	files    *protoregistry.Files
	types    *protoregistry.Types
	readOnly bool
}

var globalRegistry = &Registry{
	files:    protoregistry.GlobalFiles,
	types:    protoregistry.GlobalTypes,
	readOnly: true,
}

// NewRegistry returns a new, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		files: &protoregistry.Files{},
		types: &protoregistry.Types{},
	}
}

// GlobalRegistry returns a read-only registry backed by
// protoregistry.GlobalFiles and protoregistry.GlobalTypes. Messages it
// creates are the generated Go types linked into the program.
func GlobalRegistry() *Registry {
	return globalRegistry
}

// RegisterFile adds the given file, and the files it imports, to the
// registry. Files that are already registered under the same path are
// skipped. Types defined in the files are registered as dynamic types.
func (r *Registry) RegisterFile(file protoreflect.FileDescriptor) error {
	if r.readOnly {
		return ErrReadOnly
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Types already handed out by Types are never modified.
	types := cloneTypes(r.types)
	err := r.registerFileLocked(file, types)
	r.types = types
	return err
}

func (r *Registry) registerFileLocked(file protoreflect.FileDescriptor, types *protoregistry.Types) error {
	if _, err := r.files.FindFileByPath(file.Path()); err == nil {
		return nil
	}
	imports := file.Imports()
	for i, length := 0, imports.Len(); i < length; i++ {
		dep := imports.Get(i).FileDescriptor
		if dep.IsPlaceholder() {
			return fmt.Errorf("file %q imports %q, which could not be resolved", file.Path(), dep.Path())
		}
		if err := r.registerFileLocked(dep, types); err != nil {
			return err
		}
	}
	if err := r.files.RegisterFile(file); err != nil {
		return fmt.Errorf("failed to register file %q: %w", file.Path(), err)
	}
	registerTypes(file, types)
	return nil
}

func cloneTypes(src *protoregistry.Types) *protoregistry.Types {
	dst := &protoregistry.Types{}
	src.RangeMessages(func(mt protoreflect.MessageType) bool {
		_ = dst.RegisterMessage(mt)
		return true
	})
	src.RangeEnums(func(et protoreflect.EnumType) bool {
		_ = dst.RegisterEnum(et)
		return true
	})
	src.RangeExtensions(func(xt protoreflect.ExtensionType) bool {
		_ = dst.RegisterExtension(xt)
		return true
	})
	return dst
}

type typeContainer interface {
	Messages() protoreflect.MessageDescriptors
	Enums() protoreflect.EnumDescriptors
	Extensions() protoreflect.ExtensionDescriptors
}

// NB: This is best effort and ignores errors. Conflicts can only arise when
// two files define the same name, which RegisterFile already reports.
func registerTypes(container typeContainer, reg *protoregistry.Types) {
	msgs := container.Messages()
	for i, length := 0, msgs.Len(); i < length; i++ {
		msg := msgs.Get(i)
		if !msg.IsMapEntry() {
			_ = reg.RegisterMessage(dynamicpb.NewMessageType(msg))
		}
		registerTypes(msg, reg)
	}

	enums := container.Enums()
	for i, length := 0, enums.Len(); i < length; i++ {
		_ = reg.RegisterEnum(dynamicpb.NewEnumType(enums.Get(i)))
	}

	exts := container.Extensions()
	for i, length := 0, exts.Len(); i < length; i++ {
		_ = reg.RegisterExtension(dynamicpb.NewExtensionType(exts.Get(i)))
	}
}

// FindFileByPath returns the registered file with the given path.
func (r *Registry) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files.FindFileByPath(path)
}

// FindDescriptorByName returns the registered descriptor with the given name.
func (r *Registry) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files.FindDescriptorByName(name)
}

// FindMessageByName returns the message type with the given name.
func (r *Registry) FindMessageByName(name protoreflect.FullName) (protoreflect.MessageType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types.FindMessageByName(name)
}

// MessageDescriptor returns the descriptor for the message with the given
// name. It returns an error wrapping ErrNotMessage if the name refers to some
// other kind of element.
func (r *Registry) MessageDescriptor(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	d, err := r.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is %s: %w", name, descriptorKind(d), ErrNotMessage)
	}
	return md, nil
}

// NewMessage returns a new, empty message of the named type.
func (r *Registry) NewMessage(name protoreflect.FullName) (proto.Message, error) {
	mt, err := r.FindMessageByName(name)
	if err == nil {
		return mt.New().Interface(), nil
	}
	if !errors.Is(err, protoregistry.NotFound) {
		return nil, err
	}
	// Descriptors may be known even if no type was registered, for example
	// when the global registry holds a file without generated code.
	md, err := r.MessageDescriptor(name)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}

// Types returns a resolver for the registered types, for use with the
// protojson and prototext packages. The result is a snapshot: it is safe to
// use concurrently with RegisterFile but does not see files registered
// afterwards.
func (r *Registry) Types() *protoregistry.Types {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types
}

// MessageNames returns the full names of all messages defined in registered
// files, sorted. Map entry messages are excluded.
func (r *Registry) MessageNames() []protoreflect.FullName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []protoreflect.FullName
	r.files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		names = appendMessageNames(names, fd.Messages())
		return true
	})
	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})
	return names
}

func appendMessageNames(names []protoreflect.FullName, msgs protoreflect.MessageDescriptors) []protoreflect.FullName {
	for i, length := 0, msgs.Len(); i < length; i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		names = append(names, md.FullName())
		names = appendMessageNames(names, md.Messages())
	}
	return names
}

func descriptorKind(d protoreflect.Descriptor) string {
	switch d.(type) {
	case protoreflect.FileDescriptor:
		return "a file"
	case protoreflect.EnumDescriptor:
		return "an enum"
	case protoreflect.EnumValueDescriptor:
		return "an enum value"
	case protoreflect.FieldDescriptor:
		return "a field"
	case protoreflect.OneofDescriptor:
		return "a oneof"
	case protoreflect.ServiceDescriptor:
		return "a service"
	case protoreflect.MethodDescriptor:
		return "a method"
	default:
		return fmt.Sprintf("%T", d)
	}
}
