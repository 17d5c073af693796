// Package history keeps the conversation of an editing session as an
// immutable, append-only log.
package history

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Fragment is either text or an image data URL.
type Fragment struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type Entry struct {
	Role  Role       `json:"role"`
	Parts []Fragment `json:"parts"`
}

// Log is a value type. Append never modifies the receiver, so a Log handed
// out earlier keeps showing the same entries.
type Log struct {
	entries []Entry
}

func (l Log) Append(entries ...Entry) Log {
	if len(entries) == 0 {
		return l
	}
	next := make([]Entry, 0, len(l.entries)+len(entries))
	next = append(next, l.entries...)
	for _, e := range entries {
		next = append(next, cloneEntry(e))
	}
	return Log{entries: next}
}

func (l Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Last returns the newest entry.
func (l Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return cloneEntry(l.entries[len(l.entries)-1]), true
}

// Turn builds the user and model entries recorded after a successful edit.
// The user entry holds the prompt, the edited image if any and the product
// images; the model entry holds the description if any and the result.
func Turn(prompt, edited string, products []string, description, result string) [2]Entry {
	user := Entry{Role: RoleUser, Parts: []Fragment{{Text: prompt}}}
	if edited != "" {
		user.Parts = append(user.Parts, Fragment{Image: edited})
	}
	for _, p := range products {
		if p != "" {
			user.Parts = append(user.Parts, Fragment{Image: p})
		}
	}

	model := Entry{Role: RoleModel}
	if description != "" {
		model.Parts = append(model.Parts, Fragment{Text: description})
	}
	model.Parts = append(model.Parts, Fragment{Image: result})

	return [2]Entry{user, model}
}

func cloneEntry(e Entry) Entry {
	parts := make([]Fragment, len(e.Parts))
	copy(parts, e.Parts)
	return Entry{Role: e.Role, Parts: parts}
}
