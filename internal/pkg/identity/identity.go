// Package identity 解析网关注入的当前用户
package identity

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// HeaderUserID 由 API 网关在完成鉴权后写入
const HeaderUserID = "X-User-Id"

var ErrUnauthenticated = errors.New("missing or invalid user identity")

// UserID 返回请求对应的当前用户 id
func UserID(r *http.Request) (int64, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return 0, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}
