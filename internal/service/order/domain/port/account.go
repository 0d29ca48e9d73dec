// internal/service/order/domain/port/account.go
package port

import "context"

// AccountService 用户账户相关操作
type AccountService interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
	// CreditTomato 给用户的番茄币余额增加 cnt
	CreditTomato(ctx context.Context, userID int64, cnt int) error
}
