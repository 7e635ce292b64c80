package memcache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/chicache/driver"
)

func TestNewRequiresServers(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoServers) {
		t.Fatalf("err=%v want ErrNoServers", err)
	}
}

func TestNoMaskCapabilities(t *testing.T) {
	d, err := New(Config{Servers: []string{"127.0.0.1:11211"}, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	caps := driver.Inspect(d)
	if caps.Keys || caps.AtomicErase {
		t.Fatalf("memcache must not advertise mask operations: %+v", caps)
	}
	if !caps.Expire {
		t.Fatalf("memcache supports TOUCH: %+v", caps)
	}
}

func TestExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := NewWithClient(mc.New("127.0.0.1:11211"))
	d.now = func() time.Time { return now }

	cases := []struct {
		ttl  time.Duration
		want int32
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Hour, 3600},
		{relativeLimit, int32(relativeLimit / time.Second)},
		{relativeLimit + time.Second, int32(now.Add(relativeLimit + time.Second).Unix())},
		{200 * 365 * 24 * time.Hour, 0},
	}
	for _, tc := range cases {
		if got := d.expiration(tc.ttl); got != tc.want {
			t.Fatalf("expiration(%v)=%d want %d", tc.ttl, got, tc.want)
		}
	}
}

// textServer speaks the subset of the memcache text protocol the driver uses:
// gets, set, delete and touch.
type textServer struct {
	ln net.Listener

	mu    sync.Mutex
	items map[string][]byte
	exp   map[string]int32
	conns []net.Conn
}

func newTextServer(t *testing.T) *textServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &textServer{ln: ln, items: map[string][]byte{}, exp: map[string]int32{}}
	go s.accept()
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	return s
}

func (s *textServer) accept() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		go s.serve(c)
	}
}

func (s *textServer) serve(c net.Conn) {
	rw := bufio.NewReadWriter(bufio.NewReader(c), bufio.NewWriter(c))
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		s.mu.Lock()
		switch f[0] {
		case "get", "gets":
			for _, k := range f[1:] {
				if v, ok := s.items[k]; ok {
					fmt.Fprintf(rw, "VALUE %s 0 %d 1\r\n%s\r\n", k, len(v), v)
				}
			}
			rw.WriteString("END\r\n")
		case "set":
			n, _ := strconv.Atoi(f[4])
			exp, _ := strconv.Atoi(f[3])
			buf := make([]byte, n+2)
			if _, err := io.ReadFull(rw, buf); err != nil {
				s.mu.Unlock()
				return
			}
			s.items[f[1]] = buf[:n]
			s.exp[f[1]] = int32(exp)
			rw.WriteString("STORED\r\n")
		case "delete":
			if _, ok := s.items[f[1]]; ok {
				delete(s.items, f[1])
				delete(s.exp, f[1])
				rw.WriteString("DELETED\r\n")
			} else {
				rw.WriteString("NOT_FOUND\r\n")
			}
		case "touch":
			if _, ok := s.items[f[1]]; ok {
				exp, _ := strconv.Atoi(f[2])
				s.exp[f[1]] = int32(exp)
				rw.WriteString("TOUCHED\r\n")
			} else {
				rw.WriteString("NOT_FOUND\r\n")
			}
		default:
			rw.WriteString("ERROR\r\n")
		}
		s.mu.Unlock()
		if err := rw.Flush(); err != nil {
			return
		}
	}
}

func (s *textServer) expiration(key string) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exp[key]
	return e, ok
}

func newServedDriver(t *testing.T) (*Memcache, *textServer) {
	t.Helper()
	srv := newTextServer(t)
	d, err := New(Config{Servers: []string{srv.ln.Addr().String()}, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return d, srv
}

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	d, srv := newServedDriver(t)

	if b, ok, err := d.Get(ctx, "type:k1"); ok || err != nil || b != nil {
		t.Fatalf("miss expected: b=%v ok=%v err=%v", b, ok, err)
	}
	if err := d.Set(ctx, "type:k1", []byte{0x00, 'C', 'H', 'I', 0xff}, 90*time.Second); err != nil {
		t.Fatal(err)
	}
	b, ok, err := d.Get(ctx, "type:k1")
	if err != nil || !ok || string(b) != "\x00CHI\xff" {
		t.Fatalf("Get: b=%q ok=%v err=%v", b, ok, err)
	}
	if exp, _ := srv.expiration("type:k1"); exp != 90 {
		t.Fatalf("stored expiration=%d want 90", exp)
	}

	if err := d.Del(ctx, "type:k1"); err != nil {
		t.Fatal(err)
	}
	if err := d.Del(ctx, "type:k1"); err != nil {
		t.Fatalf("Del of missing key: %v", err)
	}
	if _, ok, _ := d.Get(ctx, "type:k1"); ok {
		t.Fatalf("deleted key still readable")
	}
}

func TestExpireTouches(t *testing.T) {
	ctx := context.Background()
	d, srv := newServedDriver(t)

	if err := d.Expire(ctx, "missing", time.Minute); err != nil {
		t.Fatalf("Expire of missing key: %v", err)
	}
	if err := d.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := d.Expire(ctx, "k", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if exp, _ := srv.expiration("k"); exp != 5 {
		t.Fatalf("touched expiration=%d want 5", exp)
	}
}
