package ready

import (
	"context"
	"net"
)

// TCP checks readiness by dialing a TCP connection. A successful
// connect-and-immediate-close counts as ready.
type TCP struct{}

func (TCP) Check(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
