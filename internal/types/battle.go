package types

type ActionKind uint8

const (
	ActionMove ActionKind = iota + 1
	ActionSwitch
	ActionForfeit
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "Move"
	case ActionSwitch:
		return "Switch"
	case ActionForfeit:
		return "Forfeit"
	default:
		return "Unknown"
	}
}

// Action is a participant's choice for the current turn.
// Move: Index is the move slot, Target the roster position of the opponent.
// Switch: Index is the party position to bring in.
type Action struct {
	Kind   ActionKind `msgpack:"k"`
	Index  int        `msgpack:"i,omitempty"`
	Target int        `msgpack:"t,omitempty"`
}

func MoveAction(slot, target int) Action {
	return Action{Kind: ActionMove, Index: slot, Target: target}
}

func SwitchAction(index int) Action {
	return Action{Kind: ActionSwitch, Index: index}
}

func ForfeitAction() Action { return Action{Kind: ActionForfeit} }

type EventKind uint8

const (
	EventBegin EventKind = iota + 1
	EventTurnRequest
	EventRejected
	EventMove
	EventMiss
	EventDamage
	EventFaint
	EventSwitch
	EventPlayerEnd
	EventGameEnd
	EventItem
)

func (k EventKind) String() string {
	switch k {
	case EventBegin:
		return "Begin"
	case EventTurnRequest:
		return "TurnRequest"
	case EventRejected:
		return "Rejected"
	case EventMove:
		return "Move"
	case EventMiss:
		return "Miss"
	case EventDamage:
		return "Damage"
	case EventFaint:
		return "Faint"
	case EventSwitch:
		return "Switch"
	case EventPlayerEnd:
		return "PlayerEnd"
	case EventGameEnd:
		return "GameEnd"
	case EventItem:
		return "Item"
	default:
		return "Unknown"
	}
}

// Event is produced by the battle engine. Actor and Target are roster
// positions; which other fields are set depends on Kind:
//
//	Begin        Roster, Self
//	TurnRequest  Turn
//	Rejected     Turn, Reason
//	Move/Miss    Actor, Target, Index (move slot)
//	Damage       Target, Amount, Remaining
//	Faint        Target, Index (party position)
//	Switch       Actor, Index (party position), Remaining
//	PlayerEnd    Actor
//	GameEnd      Winner (nil when nobody won)
//	Item         Actor, Index (item id), Amount (healed), Remaining
type Event struct {
	Kind      EventKind   `msgpack:"k"`
	Turn      int         `msgpack:"n,omitempty"`
	Actor     int         `msgpack:"a,omitempty"`
	Target    int         `msgpack:"g,omitempty"`
	Index     int         `msgpack:"i,omitempty"`
	Amount    int         `msgpack:"d,omitempty"`
	Remaining int         `msgpack:"r,omitempty"`
	Reason    string      `msgpack:"x,omitempty"`
	Self      int         `msgpack:"s,omitempty"`
	Roster    []Combatant `msgpack:"o"`
	Winner    *PeerID     `msgpack:"w,omitempty"`
}

// Combatant describes one participant to the others at battle start.
type Combatant struct {
	Peer  PeerID         `msgpack:"p"`
	Name  string         `msgpack:"n"`
	Party []CreatureView `msgpack:"c"`
}

// CreatureView is the public state of a live creature.
type CreatureView struct {
	Species uint16   `msgpack:"s"`
	Level   uint8    `msgpack:"l"`
	HP      int      `msgpack:"h"`
	MaxHP   int      `msgpack:"m"`
	Moves   []uint16 `msgpack:"v"`
}
