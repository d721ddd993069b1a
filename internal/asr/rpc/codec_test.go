package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsgpackCodec_RoundTripsRequest(t *testing.T) {
	codec := msgpackCodec{}
	req := &StreamingRecognizeRequest{
		Config: &RecognizeConfig{Language: "en", SampleRateHz: 16000, Channels: 1},
	}
	data, err := codec.Marshal(req)
	require.NoError(t, err)

	var out StreamingRecognizeRequest
	require.NoError(t, codec.Unmarshal(data, &out))
	require.NotNil(t, out.Config)
	assert.Equal(t, "en", out.Config.Language)
	assert.Equal(t, int32(16000), out.Config.SampleRateHz)
}

func TestMsgpackCodec_RoundTripsResponse(t *testing.T) {
	codec := msgpackCodec{}
	resp := &StreamingRecognizeResponse{
		Results: []SpeechRecognitionResult{{Transcript: "hello", Confidence: 0.95}},
		IsFinal: true,
	}
	data, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out StreamingRecognizeResponse
	require.NoError(t, codec.Unmarshal(data, &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "hello", out.Results[0].Transcript)
	assert.True(t, out.IsFinal)
}

func TestMsgpackCodec_Name(t *testing.T) {
	assert.Equal(t, "msgpack", msgpackCodec{}.Name())
}
