// Package todo defines the entity shared by the client, the coordinator and
// the demo server.
package todo

// Entity is the externally sourced truth for one list item. Only remote
// confirmation changes Checked.
type Entity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// Flipped returns a copy of e with Checked inverted.
func (e Entity) Flipped() Entity {
	e.Checked = !e.Checked
	return e
}

// Counts reports how many entities are checked and unchecked.
func Counts(items []Entity) (done, open int) {
	for _, it := range items {
		if it.Checked {
			done++
		} else {
			open++
		}
	}
	return
}
