package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// proxyPort is the suffix every Host header must carry (spec §4.4,
// §6: "Client must send Host: <service_name>:7777").
const proxyPort = "7777"

// Server is the proxy's HTTP front end: it extracts the service name
// from the Host header, resolves an upstream via the allocator, and
// reverse-proxies the request.
type Server struct {
	alloc *Allocator
	log   *zap.SugaredLogger
}

// NewServer builds a Server bound to alloc.
func NewServer(alloc *Allocator, log *zap.SugaredLogger) *Server {
	return &Server{alloc: alloc, log: log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	service, err := serviceNameFromHost(r.Host)
	if err != nil {
		s.log.Infow("bad host header", "host", r.Host, "error", err)
		http.Error(w, "bad gateway: "+err.Error(), http.StatusBadGateway)
		return
	}

	clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		clientIP = r.RemoteAddr
	}

	upstream, err := s.alloc.GetOrCreate(clientIP, service)
	if err != nil {
		s.log.Warnw("vlan allocation failed", "client", clientIP, "service", service, "error", err)
		http.Error(w, "bad gateway: "+err.Error(), http.StatusBadGateway)
		return
	}

	target := &url.URL{Scheme: "http", Host: upstream.String()}
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ServeHTTP(w, r)
}

// serviceNameFromHost extracts the service name from a Host header,
// requiring the fixed ":7777" suffix (spec §4.4, §6).
func serviceNameFromHost(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("missing Host header")
	}
	idx := strings.LastIndex(host, ":")
	if idx < 0 {
		return "", fmt.Errorf("host %q missing port suffix", host)
	}
	name, port := host[:idx], host[idx+1:]
	if port != proxyPort {
		return "", fmt.Errorf("host %q must use port %s", host, proxyPort)
	}
	if name == "" {
		return "", fmt.Errorf("host %q has empty service name", host)
	}
	return name, nil
}
