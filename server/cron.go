package server

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Field name   | Mandatory? | Allowed values  | Allowed special characters
// ----------   | ---------- | --------------  | --------------------------
// Seconds      | Yes        | 0-59            | * / , -
// Minutes      | Yes        | 0-59            | * / , -
// Hours        | Yes        | 0-23            | * / , -
// Day of month | Yes        | 1-31            | * / , - ?
// Month        | Yes        | 1-12 or JAN-DEC | * / , -
// Day of week  | Yes        | 0-6 or SUN-SAT  | * / , - ?

func (s *Server) jobs() map[string]func() {
	return map[string]func(){
		//SS MI HH  DOM MON DOW
		"  0 15     *    *   *   *": s.PurgeExpiredTokens, // Every hour at quarter past
	}
}

// PurgeExpiredTokens deletes QR tokens that can no longer be used.
func (s *Server) PurgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.store.PurgeExpiredTokens(ctx, s.now())
	if err != nil {
		glog.Errorf("purging expired tokens: %v", err)
		return
	}
	if n > 0 {
		glog.Infof("purged %d expired tokens", n)
	}
}
