package types

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrUnknownKind = errors.New("unknown message kind")
var ErrMissingPayload = errors.New("missing payload")

// DecodeError reports a payload that could not be turned into a message. The
// receiving loop logs it and drops the message.
type DecodeError struct {
	Message string // "client" or "server"
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s message: %v", e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func EncodeClient(m ClientMessage) ([]byte, error) {
	return msgpack.Marshal(&m)
}

func EncodeServer(m ServerMessage) ([]byte, error) {
	return msgpack.Marshal(&m)
}

func DecodeClient(data []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return ClientMessage{}, &DecodeError{Message: "client", Err: err}
	}
	if err := m.check(); err != nil {
		return ClientMessage{}, &DecodeError{Message: "client", Err: err}
	}
	return m, nil
}

func DecodeServer(data []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return ServerMessage{}, &DecodeError{Message: "server", Err: err}
	}
	if err := m.check(); err != nil {
		return ServerMessage{}, &DecodeError{Message: "server", Err: err}
	}
	return m, nil
}

func (m ClientMessage) check() error {
	switch m.Kind {
	case ClientRequestJoin, ClientLeave:
		return nil
	case ClientJoin:
		if m.Player == nil {
			return fmt.Errorf("%w: Join without player", ErrMissingPayload)
		}
	case ClientGame:
		if m.Action == nil {
			return fmt.Errorf("%w: Game without action", ErrMissingPayload)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}
	return nil
}

func (m ServerMessage) check() error {
	switch m.Kind {
	case ServerBegin, ServerEnd:
		return nil
	case ServerValidate:
		if m.Outcome == nil {
			return fmt.Errorf("%w: Validate without outcome", ErrMissingPayload)
		}
		if m.Outcome.Kind < OutcomeCanJoin || m.Outcome.Kind > OutcomeInProgress {
			return fmt.Errorf("%w: outcome %d", ErrUnknownKind, m.Outcome.Kind)
		}
	case ServerGame:
		if m.Event == nil {
			return fmt.Errorf("%w: Game without event", ErrMissingPayload)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}
	return nil
}
