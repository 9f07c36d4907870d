// Package mobi reads PalmDB based Kindle books: MOBI6/AZW and KF8/AZW3.
// It covers the record container, the PalmDOC/MOBI/EXTH headers, both text
// compression schemes and the INDX tables KF8 uses to lay out its text.
package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mrlokans/recall/internal/faults"
)

const (
	palmHeaderLen  = 78
	palmEntryLen   = 8
	palmNameLen    = 32
	palmTypeOffset = 60
)

// NoIndex marks an absent record index in MOBI headers.
const NoIndex = 0xFFFFFFFF

// Database is a parsed PalmDB container.
type Database struct {
	Name    string
	Type    string
	Creator string
	Records [][]byte
}

func structural(format string, args ...any) error {
	return fmt.Errorf("%w: %s", faults.ErrUnsupportedStructure, fmt.Sprintf(format, args...))
}

// Open splits raw into PalmDB records.
func Open(raw []byte) (*Database, error) {
	if len(raw) < palmHeaderLen {
		return nil, structural("file of %d bytes is shorter than a PalmDB header", len(raw))
	}
	count := int(binary.BigEndian.Uint16(raw[76:78]))
	if count == 0 {
		return nil, structural("PalmDB has no records")
	}
	listEnd := palmHeaderLen + count*palmEntryLen
	if listEnd > len(raw) {
		return nil, structural("record list of %d entries runs past end of file", count)
	}

	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		entry := raw[palmHeaderLen+i*palmEntryLen:]
		offsets[i] = int(binary.BigEndian.Uint32(entry[:4]))
	}
	offsets[count] = len(raw)

	db := &Database{
		Name:    string(bytes.TrimRight(raw[:palmNameLen], "\x00")),
		Type:    string(raw[palmTypeOffset : palmTypeOffset+4]),
		Creator: string(raw[palmTypeOffset+4 : palmTypeOffset+8]),
		Records: make([][]byte, count),
	}
	for i := 0; i < count; i++ {
		start, end := offsets[i], offsets[i+1]
		if start < listEnd || start > end || end > len(raw) {
			return nil, structural("record %d spans [%d, %d) of %d bytes", i, start, end, len(raw))
		}
		db.Records[i] = raw[start:end]
	}
	return db, nil
}

// Record returns record i or an error when it does not exist.
func (db *Database) Record(i int) ([]byte, error) {
	if i < 0 || i >= len(db.Records) {
		return nil, structural("record %d of %d", i, len(db.Records))
	}
	return db.Records[i], nil
}

// IsBookMobi reports whether the container type identifies a MOBI family book.
func (db *Database) IsBookMobi() bool {
	return db.Type == "BOOK" && db.Creator == "MOBI" || db.Type == "TEXt" && db.Creator == "REAd"
}
