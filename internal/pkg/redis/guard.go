package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const releaseIfMatchScriptName = "release_if_match"

// releaseIfMatch 仅当值匹配 token 时才删除，避免误删其他请求持有的占位
const releaseIfMatch = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// Guard 基于 SET NX 的短期占位，用于合并同一业务键的并发请求
type Guard struct {
	client *Client
	prefix string
	ttl    time.Duration
}

func NewGuard(client *Client, prefix string, ttl time.Duration) (*Guard, error) {
	if err := client.LoadScriptFromContent(releaseIfMatchScriptName, releaseIfMatch); err != nil {
		return nil, err
	}
	return &Guard{client: client, prefix: prefix, ttl: ttl}, nil
}

// Acquire 成功时返回释放函数；key 已被占用时 ok 为 false
func (g *Guard) Acquire(ctx context.Context, key string) (release func(context.Context), ok bool, err error) {
	fullKey := g.prefix + key
	token := uuid.NewString()
	ok, err = g.client.GetClient().SetNX(ctx, fullKey, token, g.ttl).Result()
	if err != nil {
		return nil, false, errors.Wrapf(err, "setnx %s", fullKey)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		_, _ = g.client.RunScript(ctx, releaseIfMatchScriptName, []string{fullKey}, token)
	}, true, nil
}
