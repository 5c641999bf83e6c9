package transcribepb

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName                = "ito.TranscribeService"
	TranscribeStreamFullMethod = "/ito.TranscribeService/TranscribeStream"
	transcribeStreamName       = "TranscribeStream"
)

type TranscribeServiceClient interface {
	TranscribeStream(ctx context.Context, opts ...grpc.CallOption) (TranscribeService_TranscribeStreamClient, error)
}

type transcribeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTranscribeServiceClient(cc grpc.ClientConnInterface) TranscribeServiceClient {
	return &transcribeServiceClient{cc}
}

func (c *transcribeServiceClient) TranscribeStream(ctx context.Context, opts ...grpc.CallOption) (TranscribeService_TranscribeStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &TranscribeService_ServiceDesc.Streams[0], TranscribeStreamFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &transcribeStreamClient{stream}, nil
}

type TranscribeService_TranscribeStreamClient interface {
	Send(*StreamRequest) error
	CloseAndRecv() (*TranscriptionResponse, error)
	grpc.ClientStream
}

type transcribeStreamClient struct {
	grpc.ClientStream
}

func (x *transcribeStreamClient) Send(m *StreamRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *transcribeStreamClient) CloseAndRecv() (*TranscriptionResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(TranscriptionResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type TranscribeServiceServer interface {
	TranscribeStream(TranscribeService_TranscribeStreamServer) error
}

func RegisterTranscribeServiceServer(s grpc.ServiceRegistrar, srv TranscribeServiceServer) {
	s.RegisterService(&TranscribeService_ServiceDesc, srv)
}

type TranscribeService_TranscribeStreamServer interface {
	SendAndClose(*TranscriptionResponse) error
	Recv() (*StreamRequest, error)
	grpc.ServerStream
}

type transcribeStreamServer struct {
	grpc.ServerStream
}

func (x *transcribeStreamServer) SendAndClose(m *TranscriptionResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *transcribeStreamServer) Recv() (*StreamRequest, error) {
	m := new(StreamRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func transcribeStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TranscribeServiceServer).TranscribeStream(&transcribeStreamServer{stream})
}

var TranscribeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranscribeServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    transcribeStreamName,
			Handler:       transcribeStreamHandler,
			ClientStreams: true,
		},
	},
	Metadata: "transcribe.proto",
}
