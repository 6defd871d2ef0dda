package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"hashfeed/internal/threat"
)

const (
	HashLookupServiceName = "hashfeed.v1.HashLookup"
	LookupFullMethod      = "/" + HashLookupServiceName + "/Lookup"
)

// HashLookupServer answers single-hash lookups. The request carries the hash
// as a StringValue; the reply is the record as a Struct keyed by CSV column.
type HashLookupServer interface {
	Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

func RegisterHashLookupServer(s grpc.ServiceRegistrar, srv HashLookupServer) {
	s.RegisterService(&hashLookupServiceDesc, srv)
}

var hashLookupServiceDesc = grpc.ServiceDesc{
	ServiceName: HashLookupServiceName,
	HandlerType: (*HashLookupServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hashfeed/v1/lookup.proto",
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HashLookupServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HashLookupServer).Lookup(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type lookupService struct {
	index *threat.Index
}

func (l *lookupService) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "sha256 is required")
	}
	rec, ok := l.index.Lookup(req.GetValue())
	if !ok {
		return nil, status.Error(codes.NotFound, threat.ErrNotFound.Error())
	}
	return RecordToStruct(rec)
}

// RecordToStruct converts a record into its protobuf Struct form.
func RecordToStruct(rec threat.Record) (*structpb.Struct, error) {
	row := rec.Row()
	fields := make(map[string]any, len(row))
	for i, col := range threat.Columns {
		fields[col] = row[i]
	}
	return structpb.NewStruct(fields)
}
