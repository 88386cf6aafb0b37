package types

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// PartyCapacity is the maximum number of creatures in a party.
const PartyCapacity = 6

// MaxNameLength bounds display names, in runes.
const MaxNameLength = 16

// PeerID identifies a battle participant. A new one is minted for every
// battle and never reused within the process.
type PeerID uuid.UUID

func NewPeerID() PeerID { return PeerID(uuid.New()) }

func (id PeerID) String() string { return uuid.UUID(id).String() }

// IVs are the individual values a creature's stats are derived from.
type IVs struct {
	HP      uint8 `msgpack:"h"`
	Attack  uint8 `msgpack:"a"`
	Defense uint8 `msgpack:"d"`
	Speed   uint8 `msgpack:"s"`
}

func UniformIVs(v uint8) IVs {
	return IVs{HP: v, Attack: v, Defense: v, Speed: v}
}

// PartyMember is the serializable snapshot of a creature. It is turned into
// a live creature with the catalog of the receiving process.
type PartyMember struct {
	Species  uint16   `msgpack:"s"`
	Nickname string   `msgpack:"n,omitempty"`
	Level    uint8    `msgpack:"l"`
	IVs      IVs      `msgpack:"i"`
	Moves    []uint16 `msgpack:"m"`
	Item     uint16   `msgpack:"t,omitempty"`
}

type Player struct {
	Name  string        `msgpack:"n"`
	Party []PartyMember `msgpack:"p"`
}

// NormalizeName returns the canonical form of a display name: NFC, trimmed,
// control characters removed and cut to MaxNameLength runes. The result may
// be empty.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	var b strings.Builder
	n := 0
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		if n == MaxNameLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
