// Package rpc implements the ASR backend's streaming RPC: a gRPC
// bidirectional stream carrying a first Config message then a
// sequence of AudioContent messages, grounded on
// original_source/asr/{grpc_client.rs,server.rs}.
//
// Wire messages are plain Go structs marshalled with msgpack rather
// than protoc-generated protobuf types: authoring a correct
// proto.Message/ProtoReflect implementation by hand (without running
// protoc, which this build process forbids) is not something any repo
// in the example pack actually does. msgpack — used for realtime
// binary payloads in haivivi-giztoy — is registered as a custom
// google.golang.org/grpc/encoding codec instead, keeping the real
// transport (grpc-go, streaming, deadlines, backpressure) while
// avoiding a hand-rolled fake of the protobuf toolchain.
package rpc

// RecognizeConfig is the first message on the stream.
type RecognizeConfig struct {
	Language     string `msgpack:"language"`
	SampleRateHz int32  `msgpack:"sample_rate"`
	Channels     int32  `msgpack:"channels"`
}

// StreamingRecognizeRequest is a tagged-union request frame: exactly
// one of Config or AudioContent is set.
type StreamingRecognizeRequest struct {
	Config       *RecognizeConfig `msgpack:"config,omitempty"`
	AudioContent []byte           `msgpack:"audio_content,omitempty"`
}

// SpeechRecognitionResult is one recognition hypothesis.
type SpeechRecognitionResult struct {
	Transcript string  `msgpack:"transcript"`
	Confidence float32 `msgpack:"confidence"`
	StartTime  float64 `msgpack:"start_time"`
	EndTime    float64 `msgpack:"end_time"`
}

// StreamingRecognizeResponse is one response frame. The stream ends
// after one IsFinal=true response or a backend error.
type StreamingRecognizeResponse struct {
	Results []SpeechRecognitionResult `msgpack:"results"`
	IsFinal bool                      `msgpack:"is_final"`
}
