package rpc

import (
	"google.golang.org/grpc"
)

// ServiceName is the gRPC service path, matching the shape a
// protoc-generated `asr.AsrService` would occupy.
const ServiceName = "asr.AsrService"

// Server is the ASR backend's streaming contract.
type Server interface {
	StreamingRecognize(stream StreamingRecognizeStream) error
}

// StreamingRecognizeStream is the bidi-stream handle passed to a
// Server implementation.
type StreamingRecognizeStream interface {
	Send(*StreamingRecognizeResponse) error
	Recv() (*StreamingRecognizeRequest, error)
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Send(m *StreamingRecognizeResponse) error {
	return s.ServerStream.SendMsg(m)
}

func (s *serverStream) Recv() (*StreamingRecognizeRequest, error) {
	m := new(StreamingRecognizeRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func streamingRecognizeHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(Server).StreamingRecognize(&serverStream{ServerStream: stream})
}

// ServiceDesc is registered with a *grpc.Server via RegisterServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamingRecognize",
			Handler:       streamingRecognizeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// RegisterServer attaches impl to s under the msgpack codec.
func RegisterServer(s *grpc.Server, impl Server) {
	s.RegisterService(&ServiceDesc, impl)
}
