// Package types defines the wire protocol shared by the battle server and its
// clients. Every message carries its own discriminant and is encoded with
// msgpack; compatibility is decided by an exact Version match during the join
// handshake, never by the encoding itself.
package types

// Version is the protocol version a client must present in RequestJoin.
const Version = "0.5.0"

// DefaultPort is used when an address omits its port.
const DefaultPort uint16 = 28528

type ClientKind uint8

const (
	ClientRequestJoin ClientKind = iota + 1
	ClientJoin
	ClientGame
	ClientLeave
)

func (k ClientKind) String() string {
	switch k {
	case ClientRequestJoin:
		return "RequestJoin"
	case ClientJoin:
		return "Join"
	case ClientGame:
		return "Game"
	case ClientLeave:
		return "Leave"
	default:
		return "Unknown"
	}
}

// ClientMessage is sent by clients only. Exactly one payload field is set,
// selected by Kind.
type ClientMessage struct {
	Kind    ClientKind `msgpack:"k"`
	Version string     `msgpack:"v,omitempty"`
	Player  *Player    `msgpack:"p,omitempty"`
	Action  *Action    `msgpack:"a,omitempty"`
}

func RequestJoin(version string) ClientMessage {
	return ClientMessage{Kind: ClientRequestJoin, Version: version}
}

func Join(p Player) ClientMessage {
	return ClientMessage{Kind: ClientJoin, Player: &p}
}

func Game(a Action) ClientMessage {
	return ClientMessage{Kind: ClientGame, Action: &a}
}

func Leave() ClientMessage {
	return ClientMessage{Kind: ClientLeave}
}

type ServerKind uint8

const (
	ServerValidate ServerKind = iota + 1
	ServerGame
	ServerBegin
	ServerEnd
)

func (k ServerKind) String() string {
	switch k {
	case ServerValidate:
		return "Validate"
	case ServerGame:
		return "Game"
	case ServerBegin:
		return "Begin"
	case ServerEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// ServerMessage is sent by the server only.
type ServerMessage struct {
	Kind    ServerKind      `msgpack:"k"`
	Outcome *ConnectOutcome `msgpack:"o,omitempty"`
	Event   *Event          `msgpack:"e,omitempty"`
}

func Validate(o ConnectOutcome) ServerMessage {
	return ServerMessage{Kind: ServerValidate, Outcome: &o}
}

func GameEvent(e Event) ServerMessage {
	return ServerMessage{Kind: ServerGame, Event: &e}
}

func Begin() ServerMessage { return ServerMessage{Kind: ServerBegin} }

func End() ServerMessage { return ServerMessage{Kind: ServerEnd} }

type OutcomeKind uint8

const (
	OutcomeCanJoin OutcomeKind = iota + 1
	OutcomeWrongVersion
	OutcomeAlreadyConnected
	OutcomeConnectionReplaced
	OutcomeInProgress
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCanJoin:
		return "CanJoin"
	case OutcomeWrongVersion:
		return "WrongVersion"
	case OutcomeAlreadyConnected:
		return "AlreadyConnected"
	case OutcomeConnectionReplaced:
		return "ConnectionReplaced"
	case OutcomeInProgress:
		return "InProgress"
	default:
		return "Unknown"
	}
}

// ConnectOutcome answers a RequestJoin or an out-of-place Join. Party is only
// meaningful for CanJoin and is nil unless the server generates parties.
type ConnectOutcome struct {
	Kind  OutcomeKind   `msgpack:"k"`
	Party []PartyMember `msgpack:"p"`
}

func CanJoin(party []PartyMember) ConnectOutcome {
	return ConnectOutcome{Kind: OutcomeCanJoin, Party: party}
}

func Outcome(kind OutcomeKind) ConnectOutcome {
	return ConnectOutcome{Kind: kind}
}
