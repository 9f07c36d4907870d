package tagged

// SymbolTable maps symbol ids to their text. Ids are assigned in declaration
// order starting at zero. A table belongs to exactly one stream decode.
type SymbolTable struct {
	texts []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Declare appends text and returns its id.
func (t *SymbolTable) Declare(text string) uint32 {
	t.texts = append(t.texts, text)
	return uint32(len(t.texts) - 1)
}

// Lookup returns the text for id. It is safe to call on a nil table.
func (t *SymbolTable) Lookup(id uint32) (string, bool) {
	if t == nil || int64(id) >= int64(len(t.texts)) {
		return "", false
	}
	return t.texts[id], true
}

func (t *SymbolTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.texts)
}
