package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCodeStoreTest(t *testing.T) (*CodeStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewCodeStore(store.NewRedis(rdb, time.Second)), mr
}

func TestCodeConsumedExactlyOnce(t *testing.T) {
	c, mr := newCodeStoreTest(t)
	ctx := context.Background()

	if err := c.Issue(ctx, "e@x.com", "123456", 300*time.Second); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ttl := mr.TTL(CodeKey("e@x.com")); ttl != 300*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}
	ok, err := c.VerifyAndConsume(ctx, "e@x.com", "123456")
	if err != nil || !ok {
		t.Fatalf("first consume = %v,%v", ok, err)
	}
	ok, err = c.VerifyAndConsume(ctx, "e@x.com", "123456")
	if err != nil || ok {
		t.Fatalf("replay must fail, got %v,%v", ok, err)
	}
}

func TestWrongCodeLeavesEntryIntact(t *testing.T) {
	c, _ := newCodeStoreTest(t)
	ctx := context.Background()
	_ = c.Issue(ctx, "e@x.com", "123456", time.Minute)

	if ok, err := c.VerifyAndConsume(ctx, "e@x.com", "000000"); err != nil || ok {
		t.Fatalf("wrong code = %v,%v", ok, err)
	}
	if ok, err := c.VerifyAndConsume(ctx, "e@x.com", "123456"); err != nil || !ok {
		t.Fatalf("correct code after a miss = %v,%v", ok, err)
	}
}

func TestReissueReplacesCode(t *testing.T) {
	c, _ := newCodeStoreTest(t)
	ctx := context.Background()
	_ = c.Issue(ctx, "id", "111111", time.Minute)
	_ = c.Issue(ctx, "id", "222222", time.Minute)

	if ok, _ := c.VerifyAndConsume(ctx, "id", "111111"); ok {
		t.Fatal("superseded code must not verify")
	}
	if ok, _ := c.VerifyAndConsume(ctx, "id", "222222"); !ok {
		t.Fatal("latest code should verify")
	}
}

func TestCodeExpires(t *testing.T) {
	c, mr := newCodeStoreTest(t)
	ctx := context.Background()
	_ = c.Issue(ctx, "id", "123456", 5*time.Second)
	mr.FastForward(6 * time.Second)
	if ok, err := c.VerifyAndConsume(ctx, "id", "123456"); err != nil || ok {
		t.Fatalf("expired code = %v,%v", ok, err)
	}
}

func TestAbsentAndEmpty(t *testing.T) {
	c, _ := newCodeStoreTest(t)
	ctx := context.Background()
	if ok, err := c.VerifyAndConsume(ctx, "nobody", "123456"); err != nil || ok {
		t.Fatalf("absent = %v,%v", ok, err)
	}
	_ = c.Issue(ctx, "id", "123456", time.Minute)
	if ok, _ := c.VerifyAndConsume(ctx, "id", ""); ok {
		t.Fatal("empty candidate must fail")
	}
	if pending, _ := c.Peek(ctx, "id"); !pending {
		t.Fatal("code should still be pending")
	}
}

func TestIssueValidation(t *testing.T) {
	c, _ := newCodeStoreTest(t)
	ctx := context.Background()
	if err := c.Issue(ctx, "id", "", time.Minute); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := c.Issue(ctx, "id", "1", 0); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	c, _ := newCodeStoreTest(t)
	ctx := context.Background()
	_ = c.Issue(ctx, "race", "654321", time.Minute)

	var (
		wins int32
		wg   sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := c.VerifyAndConsume(ctx, "race", "654321"); err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
}
