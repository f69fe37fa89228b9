package websocket

import (
	"context"
	"docsync-server/config"
	"docsync-server/core"
	"docsync-server/session"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(payload map[string]any)

// socketPeer adapts a socket.io socket to session.Peer.
type socketPeer struct {
	socket *socketio.Socket
}

func (p *socketPeer) ID() string { return string(p.socket.Id()) }

func (p *socketPeer) Emit(event string, args ...any) error {
	return p.socket.Emit(event, args...)
}

func (p *socketPeer) Join(room string) {
	p.socket.Join(socketio.Room(room))
}

func (p *socketPeer) Relay(room, event string, args ...any) error {
	return p.socket.Broadcast().To(socketio.Room(room)).Emit(event, args...)
}

func (p *socketPeer) Close() {
	p.socket.Disconnect(true)
}

func SetupSocketIO(manager *session.Manager, cfg *config.Config) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(cfg.MaxHTTPBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin(cfg.CORSAllowedOrigins),
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		utils.Log().Printf("socket %v connected\n", socket.Id())

		peer := &socketPeer{socket: socket}
		conn, err := manager.Open(peer, handshakeFrom(socket.Handshake().Auth))
		if err != nil {
			return
		}

		// Registered before admission so a disconnect during authorization
		// still runs the leave path.
		socket.On(session.EventDisconnect, func(datas ...any) {
			manager.Leave(conn)
			socket.RemoveAllListeners("")
		})

		socket.On(session.EventDelta, func(datas ...any) {
			_, args := extractAck(datas)
			if len(args) == 0 {
				return
			}
			if err := manager.Edit(conn, args[0]); err != nil {
				logEventError(conn, session.EventDelta, err)
			}
		})

		socket.On(session.EventPublish, func(datas ...any) {
			ack, _ := extractAck(datas)
			go func() {
				key, err := manager.Publish(context.Background(), conn)
				if err != nil {
					logEventError(conn, session.EventPublish, err)
				}
				respondWithAck(ack, map[string]any{"key": key}, err)
			}()
		})

		socket.On(session.EventRename, func(datas ...any) {
			ack, args := extractAck(datas)
			name := ""
			if len(args) > 0 {
				name, _ = args[0].(string)
			}
			go func() {
				err := manager.Rename(context.Background(), conn, name)
				if err != nil {
					logEventError(conn, session.EventRename, err)
				}
				respondWithAck(ack, map[string]any{"name": name}, err)
			}()
		})

		go manager.Admit(context.Background(), conn)
	})

	return srv
}

// handshakeFrom reads the connection fields from the socket.io auth object.
// Numeric ids are accepted as well as strings.
func handshakeFrom(auth any) core.Handshake {
	fields, _ := auth.(map[string]any)
	return core.Handshake{
		UserID:   stringField(fields, "userID"),
		Token:    stringField(fields, "token"),
		FileID:   stringField(fields, "fileID"),
		FileType: core.ParseFileType(stringField(fields, "fileType")),
		CourseID: stringField(fields, "courseID"),
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func corsOrigin(origins []string) any {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return "*"
	}
	out := make([]any, 0, len(origins))
	for _, o := range origins {
		out = append(out, o)
	}
	return out
}

func logEventError(conn *session.Connection, event string, err error) {
	log := logrus.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"user_id":       conn.UserID,
		"document_id":   conn.Ref.ID(),
		"event":         event,
	}).WithError(err)

	switch {
	case errors.Is(err, core.ErrReadOnly), errors.Is(err, session.ErrNotActive):
		log.Debug("Event dropped")
	default:
		log.Warn("Event failed")
	}
}

// extractAck splits a trailing acknowledgement callback off the event
// arguments, if the client sent one.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	fn, ok := datas[len(datas)-1].(func([]any, error))
	if !ok || fn == nil {
		return nil, datas
	}
	return func(payload map[string]any) {
		fn([]any{payload}, nil)
	}, datas[:len(datas)-1]
}

func respondWithAck(ack ackInvoker, payload map[string]any, err error) {
	if ack == nil {
		return
	}
	payload["status"] = "ok"
	if err != nil {
		payload["status"] = "error"
		payload["error"] = err.Error()
	}
	ack(payload)
}
