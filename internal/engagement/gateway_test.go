package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quillspace/engage/internal/counter"
	"github.com/quillspace/engage/internal/db"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/config"
)

func newTestGateway(t *testing.T) (*Gateway, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// sqlite has no SELECT ... FOR UPDATE; writers serialize anyway
	gdb.ClauseBuilders[clause.Locking{}.Name()] = func(clause.Clause, clause.Builder) {}

	err = gdb.AutoMigrate(
		&models.Post{}, &models.User{},
		&models.ClapFact{}, &models.BookmarkFact{}, &models.FollowFact{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cfg := &config.EngagementConfig{
		MaxUserClaps:    50,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
	gw := NewGateway(db.NewRepository(gdb), counter.NewAggregator(zap.NewNop()), nil, cfg)
	return gw, gdb
}

func seedPost(t *testing.T, gdb *gorm.DB) uuid.UUID {
	t.Helper()
	post := &models.Post{ID: uuid.New(), AuthorID: uuid.New(), CreatedAt: time.Now().UTC()}
	if err := gdb.Create(post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	return post.ID
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) uuid.UUID {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: username, CreatedAt: time.Now().UTC()}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user.ID
}

func reloadPost(t *testing.T, gdb *gorm.DB, id uuid.UUID) *models.Post {
	t.Helper()
	var p models.Post
	if err := gdb.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload post: %v", err)
	}
	return &p
}

func reloadUser(t *testing.T, gdb *gorm.DB, id uuid.UUID) *models.User {
	t.Helper()
	var u models.User
	if err := gdb.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return &u
}

func TestFollow(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	alice := seedUser(t, gdb, "alice")
	bob := seedUser(t, gdb, "bob")

	if err := gw.Follow(ctx, alice, bob); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	following, err := gw.CheckFollow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("CheckFollow failed: %v", err)
	}
	if !following {
		t.Error("expected alice to follow bob")
	}

	if got := reloadUser(t, gdb, bob).FollowersCount; got != 1 {
		t.Errorf("expected bob followers_count 1, got %d", got)
	}
	if got := reloadUser(t, gdb, alice).FollowingCount; got != 1 {
		t.Errorf("expected alice following_count 1, got %d", got)
	}
}

func TestFollowIdempotent(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	alice := seedUser(t, gdb, "alice")
	bob := seedUser(t, gdb, "bob")

	for i := 0; i < 3; i++ {
		if err := gw.Follow(ctx, alice, bob); err != nil {
			t.Fatalf("Follow %d failed: %v", i, err)
		}
	}

	if got := reloadUser(t, gdb, bob).FollowersCount; got != 1 {
		t.Errorf("expected followers_count 1 after repeats, got %d", got)
	}
	if got := reloadUser(t, gdb, alice).FollowingCount; got != 1 {
		t.Errorf("expected following_count 1 after repeats, got %d", got)
	}
}

func TestFollowRejectsSelfAndUnknown(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	alice := seedUser(t, gdb, "alice")

	if err := gw.Follow(ctx, alice, alice); !errors.Is(err, models.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation for self-follow, got %v", err)
	}
	if err := gw.Follow(ctx, alice, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown target, got %v", err)
	}
}

func TestUnfollow(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	alice := seedUser(t, gdb, "alice")
	bob := seedUser(t, gdb, "bob")

	if err := gw.Follow(ctx, alice, bob); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := gw.Unfollow(ctx, alice, bob); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	if got := reloadUser(t, gdb, bob).FollowersCount; got != 0 {
		t.Errorf("expected followers_count 0, got %d", got)
	}
	if got := reloadUser(t, gdb, alice).FollowingCount; got != 0 {
		t.Errorf("expected following_count 0, got %d", got)
	}

	// Unfollowing again stays at zero
	if err := gw.Unfollow(ctx, alice, bob); err != nil {
		t.Fatalf("repeat Unfollow failed: %v", err)
	}
	if got := reloadUser(t, gdb, bob).FollowersCount; got != 0 {
		t.Errorf("expected followers_count still 0, got %d", got)
	}
}

func TestFollowStats(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	alice := seedUser(t, gdb, "alice")
	bob := seedUser(t, gdb, "bob")
	carol := seedUser(t, gdb, "carol")

	if err := gw.Follow(ctx, alice, bob); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := gw.Follow(ctx, carol, bob); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	stats, err := gw.GetFollowStats(ctx, bob, alice)
	if err != nil {
		t.Fatalf("GetFollowStats failed: %v", err)
	}
	if stats.FollowersCount != 2 {
		t.Errorf("expected 2 followers, got %d", stats.FollowersCount)
	}
	if !stats.IsFollowing {
		t.Error("expected viewer to be following")
	}

	stats, err = gw.GetFollowStats(ctx, alice, bob)
	if err != nil {
		t.Fatalf("GetFollowStats failed: %v", err)
	}
	if stats.FollowingCount != 1 {
		t.Errorf("expected alice following 1, got %d", stats.FollowingCount)
	}
	if stats.IsFollowing {
		t.Error("bob does not follow alice")
	}
}

func TestFollowersPage(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	bob := seedUser(t, gdb, "bob")

	followers := make([]uuid.UUID, 3)
	for i, name := range []string{"u1", "u2", "u3"} {
		followers[i] = seedUser(t, gdb, name)
		if err := gw.Follow(ctx, followers[i], bob); err != nil {
			t.Fatalf("Follow failed: %v", err)
		}
	}

	page, err := gw.Followers(ctx, bob, 1, 2)
	if err != nil {
		t.Fatalf("Followers failed: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("expected total 3, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(page.Items))
	}

	all, err := gw.Following(ctx, followers[0], 1, 10)
	if err != nil {
		t.Fatalf("Following failed: %v", err)
	}
	if all.Total != 1 || len(all.Items) != 1 || all.Items[0].ID != bob {
		t.Errorf("expected u1 to follow exactly bob, got total %d", all.Total)
	}
}

func TestClap(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)
	userID := uuid.New()

	stats, err := gw.Clap(ctx, userID, postID, 1)
	if err != nil {
		t.Fatalf("Clap failed: %v", err)
	}
	if stats.UserClaps != 1 || !stats.UserClapped {
		t.Errorf("expected 1 user clap, got %d", stats.UserClaps)
	}
	if stats.TotalClaps != 1 || stats.TotalLikes != 1 {
		t.Errorf("expected totals 1/1, got %d/%d", stats.TotalClaps, stats.TotalLikes)
	}

	stats, err = gw.Clap(ctx, userID, postID, 4)
	if err != nil {
		t.Fatalf("second Clap failed: %v", err)
	}
	if stats.UserClaps != 5 {
		t.Errorf("expected accumulated 5 claps, got %d", stats.UserClaps)
	}

	post := reloadPost(t, gdb, postID)
	if post.TotalClaps != 5 {
		t.Errorf("expected total_claps 5, got %d", post.TotalClaps)
	}
	if post.TotalLikes != 1 {
		t.Errorf("expected total_likes 1, got %d", post.TotalLikes)
	}
}

func TestClapCap(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)
	userID := uuid.New()

	stats, err := gw.Clap(ctx, userID, postID, 1000)
	if err != nil {
		t.Fatalf("Clap failed: %v", err)
	}
	if stats.UserClaps != 50 {
		t.Errorf("expected cap at 50, got %d", stats.UserClaps)
	}

	// Capped users can keep clapping without moving the counters
	stats, err = gw.Clap(ctx, userID, postID, 1)
	if err != nil {
		t.Fatalf("Clap at cap failed: %v", err)
	}
	if stats.UserClaps != 50 {
		t.Errorf("expected still 50 at cap, got %d", stats.UserClaps)
	}

	post := reloadPost(t, gdb, postID)
	if post.TotalClaps != 50 || post.TotalLikes != 1 {
		t.Errorf("expected totals 50/1, got %d/%d", post.TotalClaps, post.TotalLikes)
	}
}

func TestClapValidation(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)

	if _, err := gw.Clap(ctx, uuid.New(), postID, 0); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero delta, got %v", err)
	}
	if _, err := gw.Clap(ctx, uuid.New(), postID, -3); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative delta, got %v", err)
	}
	if _, err := gw.Clap(ctx, uuid.New(), uuid.New(), 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown post, got %v", err)
	}
}

func TestConcurrentClapsConverge(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)
	userID := uuid.New()

	const workers = 2
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Clap(ctx, userID, postID, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Clap failed: %v", err)
		}
	}

	stats, err := gw.GetClapStats(ctx, userID, postID)
	if err != nil {
		t.Fatalf("GetClapStats failed: %v", err)
	}
	if stats.UserClaps != workers {
		t.Errorf("expected %d user claps after concurrent claps, got %d", workers, stats.UserClaps)
	}

	post := reloadPost(t, gdb, postID)
	if post.TotalClaps != workers {
		t.Errorf("expected total_claps %d, got %d", workers, post.TotalClaps)
	}
	if post.TotalLikes != 1 {
		t.Errorf("expected total_likes 1, got %d", post.TotalLikes)
	}
}

func TestClapsFromTwoUsers(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)

	if _, err := gw.Clap(ctx, uuid.New(), postID, 3); err != nil {
		t.Fatalf("Clap failed: %v", err)
	}
	if _, err := gw.Clap(ctx, uuid.New(), postID, 7); err != nil {
		t.Fatalf("Clap failed: %v", err)
	}

	post := reloadPost(t, gdb, postID)
	if post.TotalClaps != 10 {
		t.Errorf("expected total_claps 10, got %d", post.TotalClaps)
	}
	if post.TotalLikes != 2 {
		t.Errorf("expected total_likes 2, got %d", post.TotalLikes)
	}
}

func TestUnclap(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)
	userID := uuid.New()

	if _, err := gw.Clap(ctx, userID, postID, 5); err != nil {
		t.Fatalf("Clap failed: %v", err)
	}
	if err := gw.Unclap(ctx, userID, postID); err != nil {
		t.Fatalf("Unclap failed: %v", err)
	}

	post := reloadPost(t, gdb, postID)
	if post.TotalClaps != 0 || post.TotalLikes != 0 {
		t.Errorf("expected totals back to 0/0, got %d/%d", post.TotalClaps, post.TotalLikes)
	}

	stats, err := gw.GetClapStats(ctx, userID, postID)
	if err != nil {
		t.Fatalf("GetClapStats failed: %v", err)
	}
	if stats.UserClapped || stats.UserClaps != 0 {
		t.Errorf("expected no user claps, got %d", stats.UserClaps)
	}

	// Removing absent claps is a no-op
	if err := gw.Unclap(ctx, userID, postID); err != nil {
		t.Fatalf("repeat Unclap failed: %v", err)
	}
	if got := reloadPost(t, gdb, postID).TotalClaps; got != 0 {
		t.Errorf("expected total_claps still 0, got %d", got)
	}
}

func TestBookmark(t *testing.T) {
	gw, gdb := newTestGateway(t)
	ctx := context.Background()
	postID := seedPost(t, gdb)
	userID := uuid.New()

	if err := gw.Bookmark(ctx, userID, postID); err != nil {
		t.Fatalf("Bookmark failed: %v", err)
	}
	saved, err := gw.CheckBookmark(ctx, userID, postID)
	if err != nil {
		t.Fatalf("CheckBookmark failed: %v", err)
	}
	if !saved {
		t.Error("expected bookmark to exist")
	}

	// Saving twice keeps one row and one count
	if err := gw.Bookmark(ctx, userID, postID); err != nil {
		t.Fatalf("repeat Bookmark failed: %v", err)
	}
	if got := reloadPost(t, gdb, postID).BookmarksCount; got != 1 {
		t.Errorf("expected bookmarks_count 1, got %d", got)
	}

	list, err := gw.ListBookmarks(ctx, userID, 1, 10)
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(list) != 1 || list[0].PostID != postID {
		t.Errorf("expected reading list of 1, got %d", len(list))
	}

	if err := gw.Unbookmark(ctx, userID, postID); err != nil {
		t.Fatalf("Unbookmark failed: %v", err)
	}
	if got := reloadPost(t, gdb, postID).BookmarksCount; got != 0 {
		t.Errorf("expected bookmarks_count 0, got %d", got)
	}
	if err := gw.Unbookmark(ctx, userID, postID); err != nil {
		t.Fatalf("repeat Unbookmark failed: %v", err)
	}
	if got := reloadPost(t, gdb, postID).BookmarksCount; got != 0 {
		t.Errorf("expected bookmarks_count still 0, got %d", got)
	}
}

func TestBookmarkUnknownPost(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	err := gw.Bookmark(ctx, uuid.New(), uuid.New())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
