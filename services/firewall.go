package services

import (
	"context"
)

// Firewall manages named inbound TCP allow rules. Failures are
// expected to be treated as warnings by callers - local operation
// does not depend on the firewall being configured.
type Firewall interface {
	OpenPort(ctx context.Context, port uint32, rule_name string) error
	ClosePort(ctx context.Context, rule_name string) error
}
