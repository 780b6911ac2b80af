package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/repository"
	"github.com/OfomiMatthew/tech-buddy/internal/testutil"
)

func likeIDs(likes []db.Like) []uint64 {
	ids := make([]uint64, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
	}
	return ids
}

func TestCreateLikeRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewLikeRepository(gdb)

	_, created, err := repo.CreateLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = repo.CreateLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	gdb.Model(&db.Like{}).Count(&count)
	assert.Equal(t, int64(1), count)

	liked, err := repo.HasLiked(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = repo.HasLiked(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestGetLikersExcludesBlockedAndPaginates(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	likes := repository.NewLikeRepository(gdb)
	blocks := repository.NewBlockRepository(gdb)

	for _, liker := range []uint64{2, 3, 4} {
		_, _, err := likes.CreateLike(ctx, liker, 1)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct created_at
	}
	// alice blocked dave
	_, err := blocks.Block(ctx, 1, 4)
	require.NoError(t, err)

	page, next, err := likes.GetLikers(ctx, 1, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, likeIDs(page))
	require.NotNil(t, next)

	page, next, err = likes.GetLikers(ctx, 1, next, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, likeIDs(page))
	assert.Nil(t, next)

	count, err := likes.CountLikers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGetNewLikers(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewLikeRepository(gdb)

	// bob and alice like each other, carol likes alice one way
	_, _, _ = repo.CreateLike(ctx, 2, 1)
	_, _, _ = repo.CreateLike(ctx, 1, 2)
	_, _, _ = repo.CreateLike(ctx, 3, 1)

	page, _, err := repo.GetNewLikers(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, likeIDs(page))

	_, _, err = repo.GetLikers(ctx, 1, ptr("garbage!"), 10)
	assert.Error(t, err)
}

func TestCreateMatchIsCanonicalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewMatchRepository(gdb)

	m, created, err := repo.CreateMatch(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(1), m.User1ID)
	assert.Equal(t, uint64(2), m.User2ID)

	again, created, err := repo.CreateMatch(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m.ID, again.ID)

	var count int64
	gdb.Model(&db.Match{}).Count(&count)
	assert.Equal(t, int64(1), count)

	ok, err := repo.HasMatched(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), m.Other(1))
}

func TestListMatchesHidesBlocked(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	matches := repository.NewMatchRepository(gdb)
	blocks := repository.NewBlockRepository(gdb)

	_, _, _ = matches.CreateMatch(ctx, 1, 2)
	_, _, _ = matches.CreateMatch(ctx, 1, 3)
	_, _ = blocks.Block(ctx, 3, 1)

	list, err := matches.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(2), list[0].Other(1))
}

func TestDiscoverExclusions(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := repository.NewUserRepository(gdb)
	likes := repository.NewLikeRepository(gdb)
	blocks := repository.NewBlockRepository(gdb)

	found, err := users.Discover(ctx, 1, 20)
	require.NoError(t, err)
	// erin (5) is inactive
	assert.Equal(t, []uint64{2, 3, 4}, userIDs(found))

	_, _, _ = likes.CreateLike(ctx, 1, 2) // already liked
	_, _ = blocks.Block(ctx, 4, 1)        // dave blocked alice

	found, err = users.Discover(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, userIDs(found))

	// symmetric: dave does not see alice either
	found, err = users.Discover(ctx, 4, 20)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, userIDs(found))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := repository.NewUserRepository(gdb)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	dob := func(y int) time.Time { return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", 2).Update("date_of_birth", dob(1996)).Error) // 30
	require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", 3).Update("date_of_birth", dob(2004)).Error) // 22
	require.NoError(t, gdb.Model(&db.Profile{}).Where("user_id = ?", 3).Update("experience_level", "senior").Error)

	found, err := users.Search(ctx, 1, repository.SearchFilter{Query: "berlin", Limit: 100}, now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, userIDs(found))

	found, err = users.Search(ctx, 1, repository.SearchFilter{MinAge: 25, MaxAge: 35, Limit: 100}, now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, userIDs(found))

	found, err = users.Search(ctx, 1, repository.SearchFilter{ExperienceLevel: "senior", Limit: 100}, now)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, userIDs(found))
}

func TestConversationSoftDeleteAndMarkRead(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewMessageRepository(gdb)

	var ids []uint64
	for i, text := range []string{"hi", "hello", "how are you"} {
		sender, receiver := uint64(1), uint64(2)
		if i == 1 {
			sender, receiver = 2, 1
		}
		m := &db.Message{SenderID: sender, ReceiverID: receiver, Content: text, MessageType: db.MessageText}
		require.NoError(t, repo.Create(ctx, m))
		ids = append(ids, m.ID)
		time.Sleep(2 * time.Millisecond)
	}

	require.NoError(t, repo.SoftDelete(ctx, ids[0]))

	msgs, next, err := repo.Conversation(ctx, 1, 2, nil, 50)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "how are you", msgs[1].Content)

	// deleted row is still stored
	stored, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)

	unread, err := repo.UnreadBySender(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread[1]) // the deleted one is not counted

	n, err := repo.MarkRead(ctx, 2, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = repo.MarkRead(ctx, 2, 1, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	last, err := repo.LastVisible(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "how are you", last.Content)
}

func TestAICacheLatest(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewAICacheRepository(gdb)

	entry, err := repo.Latest(ctx, "compatibility", "1:2")
	require.NoError(t, err)
	assert.Nil(t, entry)

	old := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, repo.Save(ctx, "compatibility", "1:2", 1, []byte(`{"v":1}`), old))
	require.NoError(t, repo.Save(ctx, "compatibility", "1:2", 1, []byte(`{"v":2}`), old.Add(time.Hour)))

	entry, err = repo.Latest(ctx, "compatibility", "1:2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.JSONEq(t, `{"v":2}`, string(entry.Payload))
}

func TestBlockIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewBlockRepository(gdb)

	created, err := repo.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	blocked, err := repo.IsBlockedEitherWay(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, blocked)

	removed, err := repo.Unblock(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	blocked, err = repo.IsBlockedEitherWay(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func userIDs(users []db.User) []uint64 {
	ids := make([]uint64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func ptr(s string) *string { return &s }
