package explore

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// protoFile names the descriptor registered for ExploreService. Server
// reflection resolves it from protoregistry.GlobalFiles, so grpcurl can
// describe the service as well as list it.
const protoFile = "techbuddy/explore/v1/explore.proto"

// Descriptor is the registered ExploreService descriptor.
var Descriptor protoreflect.ServiceDescriptor

func init() {
	const structType = ".google.protobuf.Struct"

	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String("ExploreService")}
	for _, m := range ServiceDesc.Methods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.MethodName),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}

	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:       proto.String(protoFile),
		Package:    proto.String("techbuddy.explore.v1"),
		Dependency: []string{"google/protobuf/struct.proto"},
		Service:    []*descriptorpb.ServiceDescriptorProto{svc},
		Syntax:     proto.String("proto3"),
	}, protoregistry.GlobalFiles)
	if err != nil {
		panic("explore: build descriptor: " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("explore: register descriptor: " + err.Error())
	}
	Descriptor = fd.Services().Get(0)
}
