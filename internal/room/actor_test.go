package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatRedis "github.com/watchroom/server/internal/repository/chat/redis"
	"github.com/watchroom/server/internal/repository/events"
	moderationRedis "github.com/watchroom/server/internal/repository/moderation/redis"
	"github.com/watchroom/server/internal/repository/roommeta"
	roommetaRedis "github.com/watchroom/server/internal/repository/roommeta/redis"
	"github.com/watchroom/server/internal/spam"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   map[string][]Output
	closed []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]Output)}
}

func (s *fakeSender) ToMember(_ context.Context, memberId string, out any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[memberId] = append(s.sent[memberId], *(out.(*Output)))
}

func (s *fakeSender) CloseMember(_ context.Context, memberId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, memberId)
}

func (s *fakeSender) outputsFor(memberId string) []Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Output(nil), s.sent[memberId]...)
}

func (s *fakeSender) outputOfType(memberId, outputType string) (Output, bool) {
	for _, out := range s.outputsFor(memberId) {
		if out.Type == outputType {
			return out, true
		}
	}
	return Output{}, false
}

func (s *fakeSender) countOfType(memberId, outputType string) int {
	n := 0
	for _, out := range s.outputsFor(memberId) {
		if out.Type == outputType {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	actor     *Actor
	sender    *fakeSender
	publisher *fakePublisher
	clock     *testClock
	modRepo   iModerationRepo
}

const (
	testRoomId = "room1"
	ownerId    = "owner"
)

func newTestRoom(t *testing.T) *fixture {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	meta := roommeta.Meta{
		Title:                 "movie night",
		OwnerId:               ownerId,
		StreamURL:             "https://cdn.example/stream.m3u8",
		ProviderKind:          "direct-media",
		ChatEnabled:           true,
		SpamProtectionEnabled: true,
		SpamCooldownSeconds:   3,
	}

	ctx := context.Background()
	metaRepo := roommetaRedis.NewRepo(rc, logger)
	require.NoError(t, metaRepo.Set(ctx, &roommeta.SetParams{RoomId: testRoomId, Meta: meta}))

	modRepo := moderationRedis.NewRepo(rc, logger)

	fx := &fixture{
		sender:    newFakeSender(),
		publisher: &fakePublisher{},
		clock:     &testClock{now: time.Unix(10000, 0)},
		modRepo:   modRepo,
	}

	fx.actor = newActor(testRoomId, meta, nil, actorDeps{
		moderationRepo: modRepo,
		chatRepo:       chatRedis.NewRepo(rc, 100, logger),
		metaRepo:       metaRepo,
		governor:       spam.NewGovernor(),
		publisher:      fx.publisher,
		sender:         fx.sender,
		logger:         logger,
		cfg:            &Config{EmptyRoomGrace: time.Hour},
		now:            fx.clock.Now,
	}, func() {})
	t.Cleanup(fx.actor.close)

	return fx
}

func (fx *fixture) join(t *testing.T, userId string) JoinResponse {
	t.Helper()
	resp, err := fx.actor.Join(context.Background(), &JoinParams{
		UserId:   userId,
		ConnId:   "conn-" + userId,
		Username: userId,
	})
	require.NoError(t, err)
	return resp
}

func (fx *fixture) claimOwner(t *testing.T) {
	t.Helper()
	granted, err := fx.actor.ClaimHost(context.Background(), ownerId)
	require.NoError(t, err)
	require.True(t, granted)
}

func ptr[T any](v T) *T { return &v }

func TestJoinReturnsSnapshot(t *testing.T) {
	fx := newTestRoom(t)

	resp := fx.join(t, ownerId)

	assert.Equal(t, testRoomId, resp.Snapshot.RoomId)
	assert.Equal(t, "movie night", resp.Snapshot.Title)
	assert.False(t, resp.Snapshot.HostConnected)
	assert.Len(t, resp.Snapshot.Participants, 1)
	assert.Equal(t, RoleOwner, resp.Snapshot.Participants[0].Role)
	assert.True(t, resp.Snapshot.Settings.ChatEnabled)

	// the snapshot also goes out on the joiner's connection, before anything
	// else can
	outputs := fx.sender.outputsFor(ownerId)
	require.NotEmpty(t, outputs)
	assert.Equal(t, OutputRoomState, outputs[0].Type)
	assert.Equal(t, resp.Snapshot, outputs[0].Payload)
}

func TestRejoinDoesNotAnnounceAgain(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	require.Equal(t, 1, fx.sender.countOfType(ownerId, OutputUserJoined))

	// same identity joins again without leaving: a session replacement, not
	// a roster change
	resp, err := fx.actor.Join(ctx, &JoinParams{UserId: "viewer", ConnId: "conn2", Username: "viewer"})
	require.NoError(t, err)

	assert.Len(t, resp.Snapshot.Participants, 2)
	assert.Equal(t, 1, fx.sender.countOfType(ownerId, OutputUserJoined))
	assert.Equal(t, 2, fx.sender.countOfType("viewer", OutputRoomState))
}

func TestBannedUserCannotJoinUntilUnbanned(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "mallory")

	require.NoError(t, fx.actor.Ban(ctx, &BanParams{SenderId: ownerId, TargetId: "mallory", Reason: "spoilers"}))

	// the target learns point-to-point, with the reason
	out, ok := fx.sender.outputOfType("mallory", OutputYouAreBanned)
	require.True(t, ok)
	assert.Equal(t, "spoilers", out.Payload.(map[string]any)["reason"])
	assert.Contains(t, fx.sender.closed, "mallory")

	_, err := fx.actor.Join(ctx, &JoinParams{UserId: "mallory", ConnId: "c2", Username: "mallory"})
	require.ErrorIs(t, err, ErrBanned)

	require.NoError(t, fx.actor.Unban(ctx, &UnbanParams{SenderId: ownerId, TargetId: "mallory"}))

	_, err = fx.actor.Join(ctx, &JoinParams{UserId: "mallory", ConnId: "c3", Username: "mallory"})
	assert.NoError(t, err)
}

func TestModeratorCannotBan(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "mod")
	fx.join(t, "victim")
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "mod"}))

	before := fx.sender.countOfType("victim", OutputUserBanned)

	err := fx.actor.Ban(ctx, &BanParams{SenderId: "mod", TargetId: "victim", Reason: "nope"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	// no record, no broadcast
	isBanned, err := fx.modRepo.IsBanned(ctx, testRoomId, "victim")
	require.NoError(t, err)
	assert.False(t, isBanned)
	assert.Equal(t, before, fx.sender.countOfType("victim", OutputUserBanned))
	_, got := fx.sender.outputOfType("victim", OutputYouAreBanned)
	assert.False(t, got)
}

func TestKickHierarchy(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "mod")
	fx.join(t, "other-mod")
	fx.join(t, "member")
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "mod"}))
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "other-mod"}))

	// member cannot kick
	err := fx.actor.Kick(ctx, &KickParams{SenderId: "member", TargetId: "mod"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	// moderator cannot reach a peer
	err = fx.actor.Kick(ctx, &KickParams{SenderId: "mod", TargetId: "other-mod"})
	require.ErrorIs(t, err, ErrPermissionDenied)

	// moderator kicks a member
	require.NoError(t, fx.actor.Kick(ctx, &KickParams{SenderId: "mod", TargetId: "member", Reason: "afk"}))
	out, ok := fx.sender.outputOfType("member", OutputYouAreKicked)
	require.True(t, ok)
	assert.Equal(t, "afk", out.Payload.(map[string]any)["reason"])
	assert.Contains(t, fx.sender.closed, "member")

	// kicked members may rejoin
	_, err = fx.actor.Join(ctx, &JoinParams{UserId: "member", ConnId: "c2", Username: "member"})
	assert.NoError(t, err)
}

func TestOnlyAuthorityMayUpdateState(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.claimOwner(t)

	err := fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: "viewer", CurrentTime: ptr(42.0), IsPlaying: ptr(true)})
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(42.0), IsPlaying: ptr(true)}))

	out, ok := fx.sender.outputOfType("viewer", OutputStateUpdated)
	require.True(t, ok)
	payload := out.Payload.(map[string]any)
	assert.Equal(t, 42.0, payload["current_time"])
	assert.Equal(t, true, payload["is_playing"])

	// the sender does not hear its own update back
	assert.Zero(t, fx.sender.countOfType(ownerId, OutputStateUpdated))
}

func TestClockNeverRewindsViaUpdate(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.claimOwner(t)

	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(100.0), IsPlaying: ptr(true)}))

	err := fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(90.0)})
	require.ErrorIs(t, err, ErrStale)

	state, err := fx.actor.PlayerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, state.CurrentTime)

	// rewinds go through seek
	require.NoError(t, fx.actor.Seek(ctx, &SeekParams{SenderId: ownerId, TargetSeconds: 90}))
	state, err = fx.actor.PlayerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90.0, state.CurrentTime)
}

func TestSeekBroadcastsUnconditionalResync(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.claimOwner(t)

	require.NoError(t, fx.actor.Seek(ctx, &SeekParams{SenderId: ownerId, TargetSeconds: 321.5}))

	out, ok := fx.sender.outputOfType("viewer", OutputHostSeek)
	require.True(t, ok)
	assert.Equal(t, 321.5, out.Payload.(map[string]any)["current_time"])
}

func TestHostDisconnectKeepsPlaybackRunning(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.claimOwner(t)
	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(50.0), IsPlaying: ptr(true)}))

	require.NoError(t, fx.actor.Leave(ctx, ownerId))

	out, ok := fx.sender.outputOfType("viewer", OutputHostChanged)
	require.True(t, ok)
	payload := out.Payload.(map[string]any)
	assert.Equal(t, false, payload["host_connected"])
	assert.Equal(t, 50.0, payload["current_time"])

	// the clock keeps running while nobody is authoritative
	fx.clock.Advance(10 * time.Second)
	state, err := fx.actor.PlayerState(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsPlaying, "host loss must not pause viewers")
	assert.InDelta(t, 60.0, state.CurrentTime, 1e-9)
}

func TestOwnerReclaimsAuthorityOnReturn(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.claimOwner(t)
	require.NoError(t, fx.actor.Leave(ctx, ownerId))

	fx.join(t, ownerId)
	fx.claimOwner(t)

	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(10.0), IsPlaying: ptr(true)}))
	_, ok := fx.sender.outputOfType(ownerId, OutputHostGranted)
	assert.True(t, ok)
}

func TestModeratorTakesOverWhileHostAway(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "mod")
	fx.join(t, "second-mod")
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "mod"}))
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "second-mod"}))
	fx.claimOwner(t)

	// while the host is present moderators are not authoritative
	err := fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: "mod", CurrentTime: ptr(5.0)})
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, fx.actor.Leave(ctx, ownerId))

	// first moderator to publish takes the seat
	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: "mod", CurrentTime: ptr(20.0), IsPlaying: ptr(true)}))

	// the seat is single occupancy
	err = fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: "second-mod", CurrentTime: ptr(99.0)})
	require.ErrorIs(t, err, ErrPermissionDenied)

	// demoting the acting moderator vacates the seat
	require.NoError(t, fx.actor.RemoveModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "mod"}))
	err = fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: "mod", CurrentTime: ptr(30.0)})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestClaimHostByNonOwnerIsSilentNoop(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")

	granted, err := fx.actor.ClaimHost(ctx, "viewer")
	require.NoError(t, err)
	assert.False(t, granted)
	_, got := fx.sender.outputOfType("viewer", OutputHostGranted)
	assert.False(t, got)
}

func TestRequestSyncRelaysPointToPoint(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.join(t, "bystander")
	fx.claimOwner(t)

	require.NoError(t, fx.actor.RequestSync(ctx, "viewer"))

	out, ok := fx.sender.outputOfType(ownerId, OutputSyncRequest)
	require.True(t, ok)
	assert.Equal(t, "viewer", out.Payload.(map[string]any)["requester_id"])

	require.NoError(t, fx.actor.SyncResponse(ctx, &SyncResponseParams{
		SenderId:    ownerId,
		RequesterId: "viewer",
		CurrentTime: 123.4,
		IsPlaying:   true,
	}))

	out, ok = fx.sender.outputOfType("viewer", OutputSyncResponse)
	require.True(t, ok)
	assert.Equal(t, 123.4, out.Payload.(map[string]any)["current_time"])

	// the answer is point-to-point, not broadcast
	assert.Zero(t, fx.sender.countOfType("bystander", OutputSyncResponse))

	// answers from non-authorities are stale
	err := fx.actor.SyncResponse(ctx, &SyncResponseParams{SenderId: "bystander", RequesterId: "viewer"})
	require.ErrorIs(t, err, ErrStale)
}

func TestRequestSyncWithoutAuthorityIsDropped(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, "viewer")

	require.NoError(t, fx.actor.RequestSync(ctx, "viewer"))
	assert.Empty(t, fx.sender.outputsFor(ownerId))
}

func TestChatSpamGovernance(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "chatter")

	resp, err := fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: "chatter", Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message.Id)

	// everyone gets the message, author included, with the assigned id
	out, ok := fx.sender.outputOfType("chatter", OutputNewMessage)
	require.True(t, ok)
	assert.Equal(t, resp.Message, out.Payload)

	// immediate resend is governed
	_, err = fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: "chatter", Content: "again"})
	require.ErrorIs(t, err, ErrRateLimited)
	blocked, ok := fx.sender.outputOfType("chatter", OutputSpamBlocked)
	require.True(t, ok)
	assert.Greater(t, blocked.Payload.(map[string]any)["remaining"], 0.0)

	// other users are unaffected
	_, err = fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: ownerId, Content: "hi"})
	assert.NoError(t, err)
}

func TestChatDisabledDropsMessages(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	require.NoError(t, fx.actor.ChangeSettings(ctx, &ChangeSettingsParams{SenderId: ownerId, ChatEnabled: ptr(false)}))

	_, err := fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: ownerId, Content: "anyone?"})
	assert.ErrorIs(t, err, ErrChatDisabled)
}

func TestDeleteMessageTombstone(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "author")
	fx.join(t, "stranger")

	resp, err := fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: "author", Content: "typo"})
	require.NoError(t, err)

	// strangers cannot delete other people's messages
	err = fx.actor.DeleteMessage(ctx, &DeleteMessageParams{SenderId: "stranger", MessageId: resp.Message.Id})
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, fx.actor.DeleteMessage(ctx, &DeleteMessageParams{SenderId: "author", MessageId: resp.Message.Id}))

	out, ok := fx.sender.outputOfType("stranger", OutputMessageDeleted)
	require.True(t, ok)
	assert.Equal(t, resp.Message.Id, out.Payload.(map[string]any)["message_id"])
}

func TestAdminDeleteMessage(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "mod")
	fx.join(t, "author")
	require.NoError(t, fx.actor.AssignModerator(ctx, &ModeratorParams{SenderId: ownerId, TargetId: "mod"}))

	resp, err := fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: "author", Content: "rule-breaking"})
	require.NoError(t, err)

	require.NoError(t, fx.actor.DeleteMessage(ctx, &DeleteMessageParams{SenderId: "mod", MessageId: resp.Message.Id, AsAdmin: true}))

	_, ok := fx.sender.outputOfType("author", OutputMessageDeleted)
	assert.True(t, ok)
}

func TestReactionBroadcast(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")

	require.NoError(t, fx.actor.SendReaction(ctx, &SendReactionParams{SenderId: "viewer", Emoji: "🔥"}))

	out, ok := fx.sender.outputOfType(ownerId, OutputReaction)
	require.True(t, ok)
	assert.Equal(t, "🔥", out.Payload.(map[string]any)["emoji"])
}

func TestSettingsChangeByMemberIsDenied(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "member")

	err := fx.actor.ChangeSettings(ctx, &ChangeSettingsParams{SenderId: "member", ChatEnabled: ptr(false)})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestChangeStreamResetsPlayback(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	fx.join(t, "viewer")
	fx.claimOwner(t)
	require.NoError(t, fx.actor.UpdateState(ctx, &UpdateStateParams{SenderId: ownerId, CurrentTime: ptr(500.0), IsPlaying: ptr(true)}))

	require.NoError(t, fx.actor.ChangeStream(ctx, &ChangeStreamParams{
		SenderId:     ownerId,
		StreamURL:    "https://cdn.example/other.mp4",
		ProviderKind: "direct-media",
	}))

	state, err := fx.actor.PlayerState(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.CurrentTime)
	assert.False(t, state.IsPlaying)

	out, ok := fx.sender.outputOfType("viewer", OutputStreamChanged)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/other.mp4", out.Payload.(map[string]any)["stream_url"])
}

func TestMemberEventsPublished(t *testing.T) {
	fx := newTestRoom(t)
	ctx := context.Background()

	fx.join(t, ownerId)
	_, err := fx.actor.SendMessage(ctx, &SendMessageParams{SenderId: ownerId, Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, fx.actor.Leave(ctx, ownerId))

	fx.publisher.mu.Lock()
	defer fx.publisher.mu.Unlock()
	types := make([]string, 0, len(fx.publisher.events))
	for _, event := range fx.publisher.events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []string{events.TypeMemberJoined, events.TypeMessageSent, events.TypeMemberLeft}, types)
}
