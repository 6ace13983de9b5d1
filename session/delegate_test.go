package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/events"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/types"
)

type captureSubmitter struct {
	mu    sync.Mutex
	items []*types.ChatData
}

func (c *captureSubmitter) Submit(data *types.ChatData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, data)
	return nil
}

func (c *captureSubmitter) all() []*types.ChatData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.ChatData(nil), c.items...)
}

func wiredDelegate(t *testing.T) (*Delegate, *captureSubmitter) {
	t.Helper()

	d := NewDelegate("sess-1", events.NewSignalBus())
	sink := &captureSubmitter{}
	d.SetSubmitter(sink)
	d.SetTimestampSource(func() types.Timestamp {
		return types.Timestamp{SessionMillis: 42, WallMillis: 1700000000000}
	})

	d.SetInputDefinition(types.ChannelAudio, databundle.MustLockedDefinition(
		databundle.NewAudioEntry("mic_audio", 1, 16000)))
	d.SetInputDefinition(types.ChannelVideo, databundle.MustLockedDefinition(
		databundle.NewFramedEntry("camera_video",
			[]databundle.Dim{databundle.Variable(), databundle.Variable(), databundle.Variable(), databundle.Fixed(3)},
			0, 30)))
	d.SetInputDefinition(types.ChannelText, databundle.MustLockedDefinition(
		databundle.NewTextEntry("human_text")))
	return d, sink
}

func TestPutData_AudioNormalization(t *testing.T) {
	d, sink := wiredDelegate(t)

	// A frame arriving as [1, 320, 1] must bind as mono [1, 320].
	raw, err := databundle.NewFloatTensor([]int{1, 320, 1}, make([]float32, 320))
	require.NoError(t, err)

	res, err := d.PutData(types.ChannelAudio, raw, handler.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, handler.PutSubmitted, res)

	items := sink.all()
	require.Len(t, items, 1)
	assert.Equal(t, types.DataMicAudio, items[0].Type)
	assert.Equal(t, types.SourceClient, items[0].Source)
	assert.Equal(t, []int{1, 320}, items[0].Data.MainTensor().Shape())
	assert.Equal(t, int64(42), items[0].Timestamp.SessionMillis)
}

func TestPutData_VideoGainsFrameDim(t *testing.T) {
	d, sink := wiredDelegate(t)

	frame, err := databundle.NewByteTensor([]int{4, 4, 3}, make([]byte, 48))
	require.NoError(t, err)

	res, err := d.PutData(types.ChannelVideo, frame, handler.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, handler.PutSubmitted, res)

	items := sink.all()
	require.Len(t, items, 1)
	assert.Equal(t, types.DataCameraVideo, items[0].Type)
	assert.Equal(t, []int{1, 4, 4, 3}, items[0].Data.MainTensor().Shape())
}

func TestPutData_TextStampsMetadata(t *testing.T) {
	d, sink := wiredDelegate(t)

	res, err := d.PutData(types.ChannelText, "hello there", handler.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, handler.PutSubmitted, res)

	items := sink.all()
	require.Len(t, items, 1)
	bundle := items[0].Data
	assert.Equal(t, "hello there", bundle.MainText())
	assert.True(t, bundle.MetaBool(types.MetaHumanTextEnd))
	assert.NotEmpty(t, bundle.MetaString(types.MetaSpeechID))
}

func TestPutData_SpeechIDsAreUnique(t *testing.T) {
	d, sink := wiredDelegate(t)

	_, err := d.PutData(types.ChannelText, "one", handler.PutOptions{})
	require.NoError(t, err)
	_, err = d.PutData(types.ChannelText, "two", handler.PutOptions{})
	require.NoError(t, err)

	items := sink.all()
	require.Len(t, items, 2)
	assert.NotEqual(t,
		items[0].Data.MetaString(types.MetaSpeechID),
		items[1].Data.MetaString(types.MetaSpeechID))
}

func TestPutData_LoopbackDeliversExactlyOnceEachWay(t *testing.T) {
	d, sink := wiredDelegate(t)

	res, err := d.PutData(types.ChannelText, "echo me", handler.PutOptions{Loopback: true})
	require.NoError(t, err)
	assert.Equal(t, handler.PutSubmitted, res)

	items := sink.all()
	require.Len(t, items, 1)

	// The identical envelope surfaces on the text queue exactly once.
	got, err := d.GetData(context.Background(), types.ChannelText, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Same(t, items[0], got)

	again, err := d.GetData(context.Background(), types.ChannelText, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestPutData_SilentDropOutcomes(t *testing.T) {
	tests := []struct {
		name string
		prep func(d *Delegate)
		ch   types.EngineChannelType
		raw  interface{}
	}{
		{
			name: "missing channel definition",
			prep: func(d *Delegate) {
				d.SetSubmitter(&captureSubmitter{})
			},
			ch:  types.ChannelText,
			raw: "hi",
		},
		{
			name: "unknown modality",
			prep: func(d *Delegate) {
				d.SetSubmitter(&captureSubmitter{})
				d.SetInputDefinition(types.ChannelText, databundle.MustLockedDefinition(
					databundle.NewTextEntry("human_text")))
			},
			ch:  types.ChannelNone,
			raw: "hi",
		},
		{
			name: "no submitter wired",
			prep: func(d *Delegate) {
				d.SetInputDefinition(types.ChannelText, databundle.MustLockedDefinition(
					databundle.NewTextEntry("human_text")))
			},
			ch:  types.ChannelText,
			raw: "hi",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDelegate("sess-drop", events.NewSignalBus())
			tt.prep(d)

			res, err := d.PutData(tt.ch, tt.raw, handler.PutOptions{})
			assert.NoError(t, err)
			assert.Equal(t, handler.PutDropped, res)
		})
	}
}

func TestPutData_KindMismatchIsHardError(t *testing.T) {
	d, sink := wiredDelegate(t)

	// A string on the audio channel is a contract breach, not a drop.
	res, err := d.PutData(types.ChannelAudio, "not audio", handler.PutOptions{})
	assert.ErrorIs(t, err, databundle.ErrKindMismatch)
	assert.Equal(t, handler.PutDropped, res)
	assert.Empty(t, sink.all())
}

func TestPutData_ExplicitTimestampWins(t *testing.T) {
	d, sink := wiredDelegate(t)

	ts := types.Timestamp{SessionMillis: 7, WallMillis: 9}
	_, err := d.PutData(types.ChannelText, "hi", handler.PutOptions{Timestamp: &ts})
	require.NoError(t, err)

	items := sink.all()
	require.Len(t, items, 1)
	assert.Equal(t, ts, items[0].Timestamp)
}

func TestEnqueue_RoutesByChannel(t *testing.T) {
	d, _ := wiredDelegate(t)

	audio := &types.ChatData{Type: types.DataAvatarAudio}
	text := &types.ChatData{Type: types.DataAvatarText}
	d.Enqueue(audio)
	d.Enqueue(text)

	got, err := d.GetData(context.Background(), types.ChannelAudio, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Same(t, audio, got)

	got, err = d.GetData(context.Background(), types.ChannelText, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Same(t, text, got)
}

func TestClearData_DrainsAllQueues(t *testing.T) {
	d, _ := wiredDelegate(t)

	d.Enqueue(&types.ChatData{Type: types.DataAvatarAudio})
	d.Enqueue(&types.ChatData{Type: types.DataAvatarVideo})
	d.Enqueue(&types.ChatData{Type: types.DataAvatarText})

	d.ClearData()

	for _, ch := range types.Channels {
		got, err := d.GetData(context.Background(), ch, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestEmitSignal_ReachesBus(t *testing.T) {
	bus := events.NewSignalBus()
	d := NewDelegate("sess-sig", bus)

	var mu sync.Mutex
	var got []types.ChatSignal
	bus.Subscribe(types.SignalInterrupt, func(sig types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sig)
	})

	d.EmitSignal(types.ChatSignal{Type: types.SignalInterrupt})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("signal never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "sess-sig", got[0].SessionID)
}
