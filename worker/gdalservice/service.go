package gdalservice

import (
	"context"

	"github.com/golang/protobuf/ptypes/wrappers"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The raster service exchanges well-known protobuf types so no
// generated message code is needed:
//
//	Info(StringValue path) -> Struct{width, height, has_extents, min, max, geotransform}
//	ReadWindow(Struct{path, x, y, width, height}) -> BytesValue (little endian float32)
const (
	serviceName      = "rasterservice.RasterService"
	infoMethod       = "/" + serviceName + "/Info"
	readWindowMethod = "/" + serviceName + "/ReadWindow"
)

type RasterServiceServer interface {
	Info(ctx context.Context, in *wrappers.StringValue) (*structpb.Struct, error)
	ReadWindow(ctx context.Context, in *structpb.Struct) (*wrappers.BytesValue, error)
}

func RegisterRasterServiceServer(s *grpc.Server, srv RasterServiceServer) {
	s.RegisterService(&rasterServiceDesc, srv)
}

func infoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrappers.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RasterServiceServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: infoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RasterServiceServer).Info(ctx, req.(*wrappers.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func readWindowHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RasterServiceServer).ReadWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: readWindowMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RasterServiceServer).ReadWindow(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var rasterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RasterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: infoHandler},
		{MethodName: "ReadWindow", Handler: readWindowHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rasterservice.proto",
}
