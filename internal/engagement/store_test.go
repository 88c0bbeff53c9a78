package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/blogpress/pkg/event"
)

func TestSQLiteStore_Likes(t *testing.T) {
	t.Parallel()

	t.Run("同じユーザーの2回目のいいねは適用されないこと", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		applied, err := store.Like(ctx, "1", "alice")
		if err != nil || !applied {
			t.Fatalf("Like() = %v, %v, want true, nil", applied, err)
		}
		applied, err = store.Like(ctx, "1", "alice")
		if err != nil || applied {
			t.Fatalf("2回目のLike() = %v, %v, want false, nil", applied, err)
		}

		count, err := store.Count(ctx, "1", event.KindLikes)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("いいねの取り消しと状態確認ができること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		if _, err := store.Like(ctx, "1", "alice"); err != nil {
			t.Fatalf("Like()でエラーが発生: %v", err)
		}
		liked, err := store.IsLiked(ctx, "1", "alice")
		if err != nil || !liked {
			t.Fatalf("IsLiked() = %v, %v, want true, nil", liked, err)
		}

		removed, err := store.Unlike(ctx, "1", "alice")
		if err != nil || !removed {
			t.Fatalf("Unlike() = %v, %v, want true, nil", removed, err)
		}
		removed, err = store.Unlike(ctx, "1", "alice")
		if err != nil || removed {
			t.Fatalf("2回目のUnlike() = %v, %v, want false, nil", removed, err)
		}
		liked, err = store.IsLiked(ctx, "1", "alice")
		if err != nil || liked {
			t.Fatalf("IsLiked() = %v, %v, want false, nil", liked, err)
		}
	})

	t.Run("匿名ユーザーはいいねしていない扱いになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		liked, err := store.IsLiked(context.Background(), "1", "")
		if err != nil || liked {
			t.Fatalf("IsLiked() = %v, %v, want false, nil", liked, err)
		}
	})

	t.Run("件数は記事ごとに集計されること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		for _, u := range []string{"alice", "bob", "carol"} {
			if _, err := store.Like(ctx, "1", u); err != nil {
				t.Fatalf("Like()でエラーが発生: %v", err)
			}
		}
		if _, err := store.Like(ctx, "2", "alice"); err != nil {
			t.Fatalf("Like()でエラーが発生: %v", err)
		}

		if got, _ := store.Count(ctx, "1", event.KindLikes); got != 3 {
			t.Errorf("blog 1 count = %d, want 3", got)
		}
		if got, _ := store.Count(ctx, "2", event.KindLikes); got != 1 {
			t.Errorf("blog 2 count = %d, want 1", got)
		}
	})
}

func TestSQLiteStore_RecordView(t *testing.T) {
	t.Parallel()

	t.Run("同じユーザーの再閲覧も1件として数えること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := store.RecordView(ctx, "1", "alice", "127.0.0.1"); err != nil {
				t.Fatalf("RecordView()でエラーが発生: %v", err)
			}
		}
		if err := store.RecordView(ctx, "1", "", "10.0.0.1"); err != nil {
			t.Fatalf("匿名のRecordView()でエラーが発生: %v", err)
		}

		count, err := store.Count(ctx, "1", event.KindViews)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if count != 4 {
			t.Errorf("count = %d, want 4", count)
		}
	})
}

func TestSQLiteStore_Comments(t *testing.T) {
	t.Parallel()

	t.Run("コメントと返信を投稿できること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		root, err := store.AddComment(ctx, NewComment{BlogID: "1", Username: "alice", Content: "最初のコメント"})
		if err != nil {
			t.Fatalf("AddComment()でエラーが発生: %v", err)
		}
		if root.ID == "" || root.ParentID != "" {
			t.Errorf("root = %+v, IDが採番されParentIDが空であるべき", root)
		}

		reply, err := store.AddComment(ctx, NewComment{BlogID: "1", Username: "bob", Content: "返信", ParentID: root.ID})
		if err != nil {
			t.Fatalf("返信のAddComment()でエラーが発生: %v", err)
		}
		if reply.ParentID != root.ID {
			t.Errorf("ParentID = %q, want %q", reply.ParentID, root.ID)
		}

		count, err := store.Count(ctx, "1", event.KindComments)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}
	})

	t.Run("存在しない返信先はErrCommentNotFoundになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		_, err := store.AddComment(context.Background(), NewComment{BlogID: "1", Username: "bob", Content: "返信", ParentID: "missing"})
		if !errors.Is(err, ErrCommentNotFound) {
			t.Fatalf("err = %v, want ErrCommentNotFound", err)
		}
	})

	t.Run("別の記事のコメントには返信できないこと", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		other, err := store.AddComment(ctx, NewComment{BlogID: "2", Username: "alice", Content: "別記事"})
		if err != nil {
			t.Fatalf("AddComment()でエラーが発生: %v", err)
		}

		_, err = store.AddComment(ctx, NewComment{BlogID: "1", Username: "bob", Content: "返信", ParentID: other.ID})
		if !errors.Is(err, ErrCommentNotFound) {
			t.Fatalf("err = %v, want ErrCommentNotFound", err)
		}
	})

	t.Run("投稿者本人のみ更新できること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		c, err := store.AddComment(ctx, NewComment{BlogID: "1", Username: "alice", Content: "before"})
		if err != nil {
			t.Fatalf("AddComment()でエラーが発生: %v", err)
		}

		if _, err := store.UpdateComment(ctx, c.ID, "bob", "hijack"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("他人による更新: err = %v, want ErrForbidden", err)
		}

		updated, err := store.UpdateComment(ctx, c.ID, "alice", "after")
		if err != nil {
			t.Fatalf("UpdateComment()でエラーが発生: %v", err)
		}
		if updated.Content != "after" {
			t.Errorf("Content = %q, want %q", updated.Content, "after")
		}

		stored, err := store.getComment(ctx, c.ID)
		if err != nil {
			t.Fatalf("getComment()でエラーが発生: %v", err)
		}
		if stored.Content != "after" {
			t.Errorf("保存されたContent = %q, want %q", stored.Content, "after")
		}
		if stored.UpdatedAt.Before(stored.CreatedAt) {
			t.Errorf("UpdatedAt %v がCreatedAt %v より前になっている", stored.UpdatedAt, stored.CreatedAt)
		}
	})

	t.Run("削除すると返信も削除されること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		root, _ := store.AddComment(ctx, NewComment{BlogID: "1", Username: "alice", Content: "root"})
		reply, _ := store.AddComment(ctx, NewComment{BlogID: "1", Username: "bob", Content: "reply", ParentID: root.ID})
		if _, err := store.AddComment(ctx, NewComment{BlogID: "1", Username: "carol", Content: "nested", ParentID: reply.ID}); err != nil {
			t.Fatalf("AddComment()でエラーが発生: %v", err)
		}
		if _, err := store.AddComment(ctx, NewComment{BlogID: "1", Username: "dave", Content: "other"}); err != nil {
			t.Fatalf("AddComment()でエラーが発生: %v", err)
		}

		if err := store.DeleteComment(ctx, root.ID, "bob"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("他人による削除: err = %v, want ErrForbidden", err)
		}
		if err := store.DeleteComment(ctx, root.ID, "alice"); err != nil {
			t.Fatalf("DeleteComment()でエラーが発生: %v", err)
		}

		count, err := store.Count(ctx, "1", event.KindComments)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
		if err := store.DeleteComment(ctx, root.ID, "alice"); !errors.Is(err, ErrCommentNotFound) {
			t.Fatalf("削除済みの再削除: err = %v, want ErrCommentNotFound", err)
		}
	})
}

func TestSQLiteStore_Count(t *testing.T) {
	t.Parallel()

	t.Run("未知の種別はエラーになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		if _, err := store.Count(context.Background(), "1", event.Kind("SHARES")); err == nil {
			t.Fatal("Count()がエラーを返すべき")
		}
	})

	t.Run("記録が無い記事は0件であること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		for _, kind := range []event.Kind{event.KindLikes, event.KindViews, event.KindComments} {
			count, err := store.Count(context.Background(), "404", kind)
			if err != nil {
				t.Fatalf("Count(%s)でエラーが発生: %v", kind, err)
			}
			if count != 0 {
				t.Errorf("Count(%s) = %d, want 0", kind, count)
			}
		}
	})
}
