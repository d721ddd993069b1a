package asr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

func TestMockClient_ThreeFramesThenFinish(t *testing.T) {
	client := NewMockClient(10)
	sess, err := client.StartSession("sess-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, sess.SendAudio([]float32{0, 0, 0}))
	}
	require.NoError(t, sess.Finish())

	var partials int
	var finalText string
	for {
		u, ok := sess.NextUpdate()
		if !ok {
			break
		}
		if u.Kind == session.Partial {
			partials++
			assert.Contains(t, u.Text, "sess-1")
		} else {
			finalText = u.Text
		}
	}
	assert.GreaterOrEqual(t, partials, 1)
	assert.True(t, strings.HasPrefix(finalText, "session sess-1 complete"))

	_, ok := sess.NextUpdate()
	assert.False(t, ok)
}

func TestMockClient_FinishWithNoAudio(t *testing.T) {
	client := NewMockClient(10)
	sess, err := client.StartSession("sess-2")
	require.NoError(t, err)
	require.NoError(t, sess.Finish())

	u, ok := sess.NextUpdate()
	require.True(t, ok)
	assert.Equal(t, session.Final, u.Kind)
	assert.Equal(t, "session sess-2 complete no additional data", u.Text)

	_, ok = sess.NextUpdate()
	assert.False(t, ok)
}
