package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"alloyforge.ai/internal/protocol"
	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/wirecodec"
)

// RemoteError is an ERROR message sent by the server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Code + ": " + e.Message }

type Result struct {
	Welcome protocol.WelcomeMsg
	Recipes []recipe.Recipe
}

// Fetch runs one sync session against url. Every received recipe must
// decode through m; the first failure aborts the session.
func Fetch(ctx context.Context, url, clientName, knownDigest string, m recipe.Matcher) (Result, error) {
	var res Result
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return res, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      clientName,
		WireVersion:     int(wirecodec.Version),
		KnownDigest:     knownDigest,
	}
	if err := conn.WriteJSON(hello); err != nil {
		return res, fmt.Errorf("send HELLO: %w", err)
	}

	welcomed := false
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("read: %w", err)
		}
		if kind == websocket.BinaryMessage {
			if !welcomed {
				return res, fmt.Errorf("recipe frame before WELCOME")
			}
			r, err := wirecodec.Decode(msg, m)
			if err != nil {
				return res, fmt.Errorf("recipe #%d: %w", len(res.Recipes), err)
			}
			res.Recipes = append(res.Recipes, r)
			continue
		}

		base, err := protocol.DecodeBase(msg)
		if err != nil {
			return res, fmt.Errorf("bad message: %w", err)
		}
		switch base.Type {
		case protocol.TypeWelcome:
			if err := json.Unmarshal(msg, &res.Welcome); err != nil {
				return res, fmt.Errorf("bad WELCOME: %w", err)
			}
			welcomed = true
		case protocol.TypeDone:
			var done protocol.DoneMsg
			if err := json.Unmarshal(msg, &done); err != nil {
				return res, fmt.Errorf("bad DONE: %w", err)
			}
			if done.Count != len(res.Recipes) {
				return res, fmt.Errorf("DONE says %d recipes, received %d", done.Count, len(res.Recipes))
			}
			return res, nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			return res, &RemoteError{Code: e.Code, Message: e.Message}
		default:
			return res, fmt.Errorf("unexpected message type %q", strings.TrimSpace(base.Type))
		}
	}
}
