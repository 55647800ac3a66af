package sender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

type fakeTimerPoster struct {
	posts        []route.TimerCommand
	cancelAllFor []int64
}

func (f *fakeTimerPoster) Post(stageId int64, cmd route.TimerCommand) {
	f.posts = append(f.posts, cmd)
}

func (f *fakeTimerPoster) CancelAll(stageId int64) {
	f.cancelAllFor = append(f.cancelAllFor, stageId)
}

type fakeAsyncOffloader struct {
	computeCalls int
	ioCalls      int
}

func (f *fakeAsyncOffloader) Compute(stageId int64, fn func() (interface{}, error), post func(interface{}, error)) {
	f.computeCalls++
}

func (f *fakeAsyncOffloader) IO(stageId int64, fn func() (interface{}, error), post func(interface{}, error)) {
	f.ioCalls++
}

type fakeCloser struct {
	closedStageId int64
	called        bool
}

func (f *fakeCloser) RequestClose(stageId int64) {
	f.closedStageId = stageId
	f.called = true
}

func newTestStageSender(self nid.NID, stageId int64) (*StageSender, *recorder, *fakeTimerPoster, *fakeAsyncOffloader, *fakeCloser) {
	base, rec := newTestSender(self)
	timers := &fakeTimerPoster{}
	async := &fakeAsyncOffloader{}
	closer := &fakeCloser{}
	return &StageSender{ISender: base, StageId: stageId, Timers: timers, Async: async, Closer: closer}, rec, timers, async, closer
}

func TestStartRepeatTimerPostsARepeatCommandWithAFreshId(t *testing.T) {
	s, _, timers, _, _ := newTestStageSender(nid.Of(1, 1), 5)

	id := s.StartRepeatTimer(100, 200, func() {})

	require.Len(t, timers.posts, 1)
	assert.Equal(t, route.TimerRepeat, timers.posts[0].Op)
	assert.Equal(t, id, timers.posts[0].TimerId)
	assert.Equal(t, int64(100), timers.posts[0].InitialDelay)
	assert.Equal(t, int64(200), timers.posts[0].Period)
}

func TestStartCountTimerPostsACountCommand(t *testing.T) {
	s, _, timers, _, _ := newTestStageSender(nid.Of(1, 1), 5)

	s.StartCountTimer(50, 50, 3, func() {})

	require.Len(t, timers.posts, 1)
	assert.Equal(t, route.TimerCount, timers.posts[0].Op)
	assert.Equal(t, 3, timers.posts[0].Count)
}

func TestCancelTimerPostsACancelCommandForThatId(t *testing.T) {
	s, _, timers, _, _ := newTestStageSender(nid.Of(1, 1), 5)

	s.CancelTimer("timer-123")

	require.Len(t, timers.posts, 1)
	assert.Equal(t, route.TimerCancel, timers.posts[0].Op)
	assert.Equal(t, "timer-123", timers.posts[0].TimerId)
}

func TestAsyncComputeAndAsyncIORouteToTheirRespectivePools(t *testing.T) {
	s, _, _, async, _ := newTestStageSender(nid.Of(1, 1), 5)

	s.AsyncCompute(func() (interface{}, error) { return nil, nil }, func(interface{}, error) {})
	s.AsyncIO(func() (interface{}, error) { return nil, nil }, func(interface{}, error) {})

	assert.Equal(t, 1, async.computeCalls)
	assert.Equal(t, 1, async.ioCalls)
}

func TestCloseStageCancelsTimersAndRequestsClosureOfItsOwnStageId(t *testing.T) {
	s, _, timers, _, closer := newTestStageSender(nid.Of(1, 1), 42)

	s.CloseStage()

	require.Len(t, timers.cancelAllFor, 1)
	assert.Equal(t, int64(42), timers.cancelAllFor[0])
	assert.True(t, closer.called)
	assert.Equal(t, int64(42), closer.closedStageId)
}

func TestSendToClientAddressedToOwnNodeIsDeliveredLocally(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec, _, _, _ := newTestStageSender(self, 9)

	s.SendToClient(self, 123, []byte("frame-bytes"))

	require.Len(t, rec.sent, 1)
	assert.True(t, rec.sent[0].Header.IsToClient)
	assert.Equal(t, int64(123), rec.sent[0].Header.Sid)
	assert.Equal(t, int64(9), rec.sent[0].Header.StageId)
	assert.Equal(t, string(self), rec.sent[0].Header.From)
	assert.Equal(t, []byte("frame-bytes"), rec.sent[0].Payload.Bytes())
}
