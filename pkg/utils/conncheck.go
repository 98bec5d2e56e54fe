package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
)

const defaultNatsPort = "4222"

var natsURLRegex = regexp.MustCompile(
	"^(?P<proto>nats|tls|ws|wss)://(.*@)?(?P<addr>(?P<host>[^:/]*?)(:(?P<port>\\d+))?)/?$")

// WaitForTCP blocks until addr accepts tcp connections, timeout passed or ctx is done
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// ExtractFromNatsURL returns the host:port of each server in a (comma separated)
// NATS url. Missing ports default to 4222.
func ExtractFromNatsURL(url string) []string {
	ret := []string{}
	for _, part := range strings.Split(url, ",") {
		param := resolveRegex(natsURLRegex, strings.TrimSpace(part))
		if len(param) == 0 || param["host"] == "" {
			continue
		}
		if port := param["port"]; port != "" {
			ret = append(ret, param["addr"])
		} else {
			ret = append(ret, net.JoinHostPort(param["host"], defaultNatsPort))
		}
	}
	return ret
}

func resolveRegex(re *regexp.Regexp, url string) map[string]string {
	match := re.FindStringSubmatch(url)
	if match == nil {
		return nil
	}
	paramsMap := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
