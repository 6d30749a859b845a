package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/wallet-ledger/internal/model"
)

func balanceKey(userID uint64) string { return fmt.Sprintf("balance:%d", userID) }

// cachedBalance carries the row version that model.Balance keeps out of its
// JSON form.
type cachedBalance struct {
	model.Balance
	Version uint64 `json:"version"`
}

// setIfNewerLua writes ARGV[2] unless the cached entry already has a version
// greater than or equal to ARGV[1].
const setIfNewerLua = `
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, obj = pcall(cjson.decode, cur)
  if ok and obj.version and tonumber(obj.version) >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

var setIfNewer = redis.NewScript(setIfNewerLua)

// CacheBalance writes Redis. An older version never replaces a newer one.
func (r *Repository) CacheBalance(ctx context.Context, b *model.Balance) error {
	if r.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(cachedBalance{Balance: *b, Version: b.Version})
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, r.rdb, []string{balanceKey(b.UserID)},
		b.Version, string(payload), r.balanceTTL.Milliseconds()).Err()
}

// GetCachedBalance reads Redis. A miss is reported as redis.Nil.
func (r *Repository) GetCachedBalance(ctx context.Context, userID uint64) (*model.Balance, error) {
	if r.rdb == nil {
		return nil, redis.Nil
	}
	str, err := r.rdb.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var cb cachedBalance
	if err := json.Unmarshal([]byte(str), &cb); err != nil {
		return nil, err
	}
	b := cb.Balance
	b.Version = cb.Version
	return &b, nil
}

// InvalidateBalance drops cached balances.
func (r *Repository) InvalidateBalance(ctx context.Context, userIDs ...uint64) error {
	if r.rdb == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, balanceKey(id))
	}
	return r.rdb.Del(ctx, keys...).Err()
}
