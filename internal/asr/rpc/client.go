package rpc

import (
	"context"
	"io"

	"google.golang.org/grpc"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr"
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// clientStream wraps the grpc.ClientConn stream with the Send/Recv
// shapes a protoc-generated client stub would expose.
type clientStream struct {
	grpc.ClientStream
}

func (c *clientStream) Send(m *StreamingRecognizeRequest) error {
	return c.ClientStream.SendMsg(m)
}

func (c *clientStream) Recv() (*StreamingRecognizeResponse, error) {
	m := new(StreamingRecognizeResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func newStreamingRecognizeClient(ctx context.Context, cc *grpc.ClientConn) (*clientStream, error) {
	desc := &ServiceDesc.Streams[0]
	stream, err := cc.NewStream(ctx, desc, "/"+ServiceName+"/StreamingRecognize",
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return &clientStream{ClientStream: stream}, nil
}

// Dial opens a ClientConn pre-configured to use the msgpack codec for
// every call, mirroring the teacher's `AsrServiceClient::connect`.
func Dial(ctx context.Context, endpoint string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	allOpts := append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return grpc.DialContext(ctx, endpoint, allOpts...)
}

// Adapter implements asr.StreamingClient over a real gRPC connection
// to the ASR backend, grounded on
// original_source/asr/grpc_client.rs's GrpcAsrClientAdapter: one bidi
// stream per session, Config sent first, AudioContent messages
// relayed as frames arrive, send side half-closed on Finish.
type Adapter struct {
	conn         *grpc.ClientConn
	language     string
	sampleRateHz int32
	channels     int32
}

// NewAdapter builds an Adapter over conn (see Dial), describing the
// stream's fixed Config payload.
func NewAdapter(conn *grpc.ClientConn, language string, sampleRateHz, channels int32) *Adapter {
	return &Adapter{conn: conn, language: language, sampleRateHz: sampleRateHz, channels: channels}
}

// StartSession opens one bidi stream for sessionID and wires its
// command/update channels to it.
func (a *Adapter) StartSession(sessionID string) (*asr.StreamingSession, error) {
	ctx := context.Background()
	stream, err := newStreamingRecognizeClient(ctx, a.conn)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.AsrProcessing, "failed to open streaming RPC", err)
	}
	if err := stream.Send(&StreamingRecognizeRequest{
		Config: &RecognizeConfig{
			Language:     a.language,
			SampleRateHz: a.sampleRateHz,
			Channels:     a.channels,
		},
	}); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.AsrProcessing, "failed to send config", err)
	}

	sess, updateCh := asr.NewStreamingSession(sessionID, 32, func(frame []float32, finish bool) bool {
		if finish {
			if err := stream.CloseSend(); err != nil {
				return false
			}
			return true
		}
		return stream.Send(&StreamingRecognizeRequest{AudioContent: encodeS16LE(frame)}) == nil
	})

	go a.pumpResponses(stream, updateCh)

	return sess, nil
}

// pumpResponses reads backend responses and forwards them as
// TranscriptUpdate values until a final response or stream error.
func (a *Adapter) pumpResponses(stream *clientStream, updateCh chan<- session.TranscriptUpdate) {
	defer close(updateCh)
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		text := ""
		confidence := float32(0)
		if len(resp.Results) > 0 {
			text = resp.Results[0].Transcript
			confidence = resp.Results[0].Confidence
		}
		if resp.IsFinal {
			updateCh <- session.TranscriptUpdate{Kind: session.Final, Text: text}
			return
		}
		updateCh <- session.TranscriptUpdate{Kind: session.Partial, Text: text, Confidence: float64(confidence)}
	}
}

// encodeS16LE converts target-rate f32 samples in [-1,1] back to
// interleaved S16LE bytes for the wire, matching the backend's
// expected `audio_content` shape (spec.md §6).
func encodeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clampF32(s, -1, 1) * 32767)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
