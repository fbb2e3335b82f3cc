package stats

import "encoding/json"

// nameTable mirrors spec.md §4.7's JSON-ish text frame:
// {"index":<stat_index>,"name":"<world>","ghosts":["Destroy",<names>…],
// "errors":[<names>…]}. "Destroy" is always the implicit first ghost entry
// (spec.md's wire format reserves slot 0 for the built-in despawn record).
type nameTable struct {
	Index  int32    `json:"index"`
	Name   string   `json:"name"`
	Ghosts []string `json:"ghosts"`
	Errors []string `json:"errors"`
}

// encodeNameTable renders c's current ghost/error name tables as the text
// frame the debug bridge forwards verbatim. Caller holds c.mu.
func encodeNameTable(c *Collector) []byte {
	ghosts := make([]string, 0, len(c.ghostNames)+1)
	ghosts = append(ghosts, "Destroy")
	ghosts = append(ghosts, c.ghostNames...)

	out, err := json.Marshal(nameTable{
		Index:  c.statIndex,
		Name:   c.worldName,
		Ghosts: ghosts,
		Errors: append([]string(nil), c.errorNames...),
	})
	if err != nil {
		// Name tables are plain strings; Marshal cannot fail for this shape.
		return nil
	}
	return out
}

// DecodeNameTable parses a text frame produced by encodeNameTable.
func DecodeNameTable(buf []byte) (index int32, worldName string, ghosts, errNames []string, err error) {
	var t nameTable
	if err := json.Unmarshal(buf, &t); err != nil {
		return 0, "", nil, nil, err
	}
	return t.Index, t.Name, t.Ghosts, t.Errors, nil
}
