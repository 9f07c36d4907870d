// Package kfx reads KFX book containers: a table of typed entities whose
// payloads are single tagged values.
package kfx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/tagged"
)

var (
	Magic    = []byte("CONT")
	DRMMagic = []byte("\xeaDRMION\xee")
)

// Entity types.
const (
	TypeSection       uint32 = 1
	TypePositionIndex uint32 = 2
	TypeMetadata      uint32 = 3
	TypeNavigation    uint32 = 4
)

const (
	headerLen = 10
	entryLen  = 24
)

type Entity struct {
	ID      uint32
	Type    uint32
	Payload []byte
}

type Container struct {
	Version  uint16
	Entities []Entity
}

func structural(format string, args ...any) error {
	return fmt.Errorf("%w: %s", faults.ErrUnsupportedStructure, fmt.Sprintf(format, args...))
}

// Open parses the container table. Payloads are decoded lazily.
func Open(raw []byte) (*Container, error) {
	if bytes.HasPrefix(raw, DRMMagic) {
		return nil, fmt.Errorf("%w: DRMION wrapped container", faults.ErrDrmProtected)
	}
	if len(raw) < headerLen || !bytes.Equal(raw[:4], Magic) {
		return nil, structural("missing KFX container magic")
	}
	c := &Container{Version: binary.BigEndian.Uint16(raw[4:])}
	if c.Version < 1 || c.Version > 2 {
		return nil, structural("container version %d", c.Version)
	}
	count := int(binary.BigEndian.Uint32(raw[6:]))
	if count > (len(raw)-headerLen)/entryLen {
		return nil, structural("entity table of %d entries runs past end of file", count)
	}

	c.Entities = make([]Entity, 0, count)
	for i := 0; i < count; i++ {
		e := raw[headerLen+i*entryLen:]
		off := binary.BigEndian.Uint64(e[8:])
		n := binary.BigEndian.Uint64(e[16:])
		if off > uint64(len(raw)) || n > uint64(len(raw))-off {
			return nil, structural("entity %d payload [%d, +%d) outside file", i, off, n)
		}
		c.Entities = append(c.Entities, Entity{
			ID:      binary.BigEndian.Uint32(e[0:]),
			Type:    binary.BigEndian.Uint32(e[4:]),
			Payload: raw[off : off+n],
		})
	}
	return c, nil
}

// Value decodes the entity payload.
func (e Entity) Value() (tagged.Value, error) {
	v, err := tagged.Decode(e.Payload)
	if err != nil {
		return tagged.Value{}, fmt.Errorf("%w: entity %d: %v", faults.ErrUnsupportedStructure, e.ID, err)
	}
	return v, nil
}

// ByType returns the entities of type t in table order.
func (c *Container) ByType(t uint32) []Entity {
	var out []Entity
	for _, e := range c.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
