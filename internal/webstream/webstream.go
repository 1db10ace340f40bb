package webstream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"
	"nhooyr.io/websocket"

	"vigia.dev/patroltrack/internal/auth"
	"vigia.dev/patroltrack/internal/hub"
)

const (
	// client -> server
	EvPositionUpdated string = "positionUpdated"
	EvViewerJoined    string = "viewerJoined"
	// server -> all clients
	EvPositionBroadcast string = "positionBroadcast"
)

type StreamConfig struct {
	ListenAddr string
	// ProxyProtocol wraps the listener for deployments behind an LB that
	// speaks the PROXY protocol.
	ProxyProtocol bool
}

// StreamServer accepts websocket connections, requires a valid bearer token
// as the first frame, and relays every positionUpdated event to all connected
// clients through the hub.
type StreamServer struct {
	server *http.Server
	log    log.Logger
	hub    *hub.Hub
	secret string
	config StreamConfig
}

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type PositionEvent struct {
	Id           uint64  `json:"id"`
	Name         string  `json:"name"`
	AssignedUnit string  `json:"assigned_unit"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Speed        float64 `json:"speed"`
}

type ViewerHello struct {
	Id   uint64 `json:"id"`
	Name string `json:"name"`
}

func NewStreamServer(h *hub.Hub, jwtSecret string, config StreamConfig) *StreamServer {
	o := &StreamServer{config: config}
	o.server = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        http.HandlerFunc(o.serve_http),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "websocket").Value()
	o.hub = h
	o.secret = jwtSecret
	return o
}

func (ws *StreamServer) Run() {
	ws.log.Info().Msgf("starting stream server on : %s", ws.config.ListenAddr)
	ln, err := net.Listen("tcp", ws.config.ListenAddr)
	if err != nil {
		ws.log.Error().Err(err).Msg("")
		panic(err)
	}
	if ws.config.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	err = ws.server.Serve(ln)
	if err != nil {
		ws.log.Error().Err(err).Msg("")
		panic(err)
	}
}

func (ws *StreamServer) serve_http(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		ws.log.Error().Err(err).Msg("error while upgrading websocket")
		return
	}
	// the first frame must be a bearer token, same credential as the HTTP api
	readCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	_, msg, err := c.Read(readCtx)
	if err != nil {
		ws.log.Error().Err(err).Msg("error while reading auth token")
		c.Close(websocket.StatusPolicyViolation, "token required")
		return
	}
	claims, err := auth.ParseToken(ws.secret, string(msg))
	if err != nil {
		ws.log.Info().Err(err).Msg("invalid stream token")
		c.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	cl := &streamClient{srv: ws, c: c, log: ws.log}
	cl.out = make(chan []byte, 16)
	cl.done = make(chan struct{})
	cl.meta = hub.Meta{Id: claims.PrincipalId, Name: claims.Name, Role: claims.Role}
	ws.hub.Subscribe(cl, cl.meta)
	ws.log.Info().Uint64("principal_id", claims.PrincipalId).Str("role", claims.Role).
		Int("connected", ws.hub.Connected()).Msg("stream client connected")

	cl.wg.Add(1)
	go cl.writeLoop()
	cl.wg.Add(1)
	go cl.readLoop()
	cl.wg.Wait()

	ws.hub.Unsubscribe(cl)
	c.Close(websocket.StatusNormalClosure, "")
	ws.log.Info().Uint64("principal_id", claims.PrincipalId).
		Int("connected", ws.hub.Connected()).
		Uint64("pushed", atomic.LoadUint64(&cl.pushed)).
		Uint64("skipped", atomic.LoadUint64(&cl.skipped)).Msg("stream client disconnected")
}

type streamClient struct {
	wg      sync.WaitGroup
	srv     *StreamServer
	c       *websocket.Conn
	log     log.Logger
	meta    hub.Meta
	out     chan []byte
	done    chan struct{}
	once    sync.Once
	closed  uint32
	pushed  uint64
	skipped uint64
}

func (cl *streamClient) closeErr() {
	cl.once.Do(func() {
		atomic.StoreUint32(&cl.closed, 1)
		close(cl.done)
		// unblocks whichever loop is still parked on the connection
		cl.c.Close(websocket.StatusNormalClosure, "")
	})
}

// Push never blocks: a slow client skips frames instead of stalling the hub.
func (cl *streamClient) Push(d []byte) bool {
	if atomic.LoadUint32(&cl.closed) == 1 {
		return true
	}
	select {
	case cl.out <- d:
		atomic.AddUint64(&cl.pushed, 1)
	default:
		atomic.AddUint64(&cl.skipped, 1)
	}
	return false
}

func (cl *streamClient) readLoop() {
	defer cl.wg.Done()
	defer cl.closeErr()
	for {
		_, msg, err := cl.c.Read(context.Background())
		if err != nil {
			return
		}
		env := Envelope{}
		if err := json.Unmarshal(msg, &env); err != nil {
			cl.log.Warn().Err(err).Msg("unparseable stream message")
			continue
		}
		switch env.Event {
		case EvPositionUpdated:
			// relayed verbatim to everyone, sender included
			b, err := json.Marshal(Envelope{Event: EvPositionBroadcast, Data: env.Data})
			if err != nil {
				cl.log.Error().Err(err).Msg("")
				continue
			}
			cl.srv.hub.Broadcast(b)
		case EvViewerJoined:
			hello := ViewerHello{}
			if err := json.Unmarshal(env.Data, &hello); err != nil {
				cl.log.Warn().Err(err).Msg("bad viewerJoined payload")
				continue
			}
			// advisory only, delivery stays unscoped
			cl.srv.hub.Tag(cl, hub.Meta{Id: cl.meta.Id, Name: hello.Name, Role: cl.meta.Role})
			cl.log.Debug().Str("name", hello.Name).Msg("viewer joined")
		default:
			cl.log.Warn().Str("event", env.Event).Msg("unknown stream event")
		}
	}
}

func (cl *streamClient) writeLoop() {
	defer cl.wg.Done()
	for {
		select {
		case <-cl.done:
			return
		case d := <-cl.out:
			err := cl.c.Write(context.Background(), websocket.MessageText, d)
			if err != nil {
				cl.log.Error().Err(err).Msg("error while writing to connection")
				cl.closeErr()
				return
			}
		}
	}
}
