package cache

import (
	"net"
	"strconv"
)

func splitAddr(addr string) (string, int64) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		panic(err)
	}
	p, err := strconv.ParseInt(port, 10, 64)
	if err != nil {
		panic(err)
	}
	return host, p
}
