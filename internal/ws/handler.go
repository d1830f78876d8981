package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/presence"
	"reelcv-backend/internal/security"
	"reelcv-backend/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or
// Sec-WebSocket-Protocol), then dispatches events:
//   - message   -> create via MessageService (connection-gated) & push to both members
//   - typing    -> renew/clear the Redis typing flag & forward to the peer
//   - mark_read -> reset the caller's read cursor & notify the peer
//
// While the socket lives, a heartbeat ticker renews the caller's presence
// TTL; the record expires on its own if the client vanishes.
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	threadSvc *service.ThreadService,
	msgSvc *service.MessageService,
	tracker *presence.Tracker,
	allowedOrigins []string,
	heartbeat time.Duration,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		uid, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUID(ctx, uid)
		if err != nil || user == nil || !user.IsActive {
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// The request context carries the router's timeout and expires
		// while the socket is still open, so everything after the upgrade
		// runs on a connection-scoped context.
		connCtx, cancelConn := context.WithCancel(context.Background())

		if err := tracker.SetOnline(connCtx, user.UID); err != nil {
			log.Printf("ws: set online for %s: %v", user.UID, err)
		}
		client := hub.Register(user.UID, conn)

		// Heartbeat keeps the presence TTL renewed until the socket dies.
		go func() {
			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()
			for {
				select {
				case <-connCtx.Done():
					return
				case <-ticker.C:
					if err := tracker.SetOnline(connCtx, user.UID); err != nil {
						log.Printf("ws: heartbeat for %s: %v", user.UID, err)
					}
				}
			}
		}()

		defer func() {
			cancelConn()
			hub.Unregister(user.UID, conn)
			if err := tracker.SetOffline(context.Background(), user.UID); err != nil {
				log.Printf("ws: set offline for %s: %v", user.UID, err)
			}
			if err := users.UpdateLastSeen(context.Background(), user.UID); err != nil {
				log.Printf("ws: update last seen for %s: %v", user.UID, err)
			}
			hub.BroadcastAll(map[string]any{
				"type":     "user_offline",
				"uid":      user.UID,
				"username": user.Username,
			})
		}()
		hub.BroadcastAll(map[string]any{
			"type":     "user_online",
			"uid":      user.UID,
			"username": user.Username,
		})

		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				break
			}
			msgType, _ := payload["type"].(string)
			switch msgType {

			case "message":
				threadID, _ := payload["thread_id"].(string)
				text, _ := payload["text"].(string)
				if threadID == "" || text == "" {
					sendError(client, "message requires thread_id and non-empty text")
					continue
				}
				msg, err := msgSvc.Send(connCtx, user.UID, threadID, text)
				if err != nil {
					sendError(client, err.Error())
					continue
				}
				// Sending ends any typing state.
				if err := tracker.StopTyping(connCtx, threadID, user.UID); err != nil {
					log.Printf("ws: stop typing for %s: %v", user.UID, err)
				}
				if t, err := threadSvc.Get(connCtx, user.UID, threadID); err == nil {
					hub.NotifyUsers(t.Members(), map[string]any{
						"type":    "message",
						"message": msgSvc.ToResponse(connCtx, msg),
					})
				}

			case "typing":
				threadID, _ := payload["thread_id"].(string)
				isTyping, _ := payload["is_typing"].(bool)
				if threadID == "" {
					sendError(client, "typing requires thread_id")
					continue
				}
				t, err := threadSvc.Get(connCtx, user.UID, threadID)
				if err != nil {
					sendError(client, err.Error())
					continue
				}
				if isTyping {
					err = tracker.Typing(connCtx, threadID, user.UID)
				} else {
					err = tracker.StopTyping(connCtx, threadID, user.UID)
				}
				if err != nil {
					// Liveness hint only; losing it is not an error the
					// peer needs to know about.
					log.Printf("ws: typing flag for %s: %v", user.UID, err)
				}
				hub.NotifyUsers([]string{t.Other(user.UID)}, map[string]any{
					"type":      "typing",
					"thread_id": threadID,
					"uid":       user.UID,
					"is_typing": isTyping,
				})

			case "mark_read":
				threadID, _ := payload["thread_id"].(string)
				if threadID == "" {
					sendError(client, "mark_read requires thread_id")
					continue
				}
				if err := threadSvc.MarkRead(connCtx, user.UID, threadID); err != nil {
					sendError(client, err.Error())
					continue
				}
				if t, err := threadSvc.Get(connCtx, user.UID, threadID); err == nil {
					hub.NotifyUsers([]string{t.Other(user.UID)}, map[string]any{
						"type":      "thread_read",
						"thread_id": threadID,
						"uid":       user.UID,
					})
				}

			default:
				sendError(client, "unknown event type")
			}
		}
	}
}

func sendError(client *Client, msg string) {
	_ = client.Send(map[string]any{
		"type":  "error",
		"error": msg,
	})
}
