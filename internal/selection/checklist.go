package selection

// Key is an abstract checklist input, decoupled from how keys are read.
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyToggle
	KeySelectAll
	KeySelectNone
	KeyConfirm
	KeyCancel
)

// Option is one selectable feature.
type Option struct {
	ID          string
	Label       string
	Description string
}

// Checklist is the selection state machine: a cursor plus a checked set.
// It never touches a terminal.
type Checklist struct {
	Options []Option
	Cursor  int

	checked   map[string]bool
	done      bool
	cancelled bool
}

// NewChecklist returns a checklist over opts with preselected checked.
// IDs in preselected that are not options are ignored.
func NewChecklist(opts []Option, preselected ...string) *Checklist {
	c := &Checklist{Options: opts, checked: make(map[string]bool)}
	for _, id := range preselected {
		for _, o := range opts {
			if o.ID == id {
				c.checked[id] = true
			}
		}
	}
	return c
}

// Handle applies one key. Keys after Confirm or Cancel are ignored.
func (c *Checklist) Handle(k Key) {
	if c.Finished() {
		return
	}
	n := len(c.Options)
	switch k {
	case KeyUp:
		if n > 0 {
			c.Cursor = (c.Cursor - 1 + n) % n
		}
	case KeyDown:
		if n > 0 {
			c.Cursor = (c.Cursor + 1) % n
		}
	case KeyToggle:
		if n > 0 {
			id := c.Options[c.Cursor].ID
			c.checked[id] = !c.checked[id]
		}
	case KeySelectAll:
		for _, o := range c.Options {
			c.checked[o.ID] = true
		}
	case KeySelectNone:
		clear(c.checked)
	case KeyConfirm:
		c.done = true
	case KeyCancel:
		c.cancelled = true
	}
}

// Checked reports whether id is selected.
func (c *Checklist) Checked(id string) bool { return c.checked[id] }

// Selected returns the checked IDs in option order.
func (c *Checklist) Selected() []string {
	var out []string
	for _, o := range c.Options {
		if c.checked[o.ID] {
			out = append(out, o.ID)
		}
	}
	return out
}

// Finished reports whether the user confirmed or cancelled.
func (c *Checklist) Finished() bool { return c.done || c.cancelled }

// Cancelled reports whether the user cancelled.
func (c *Checklist) Cancelled() bool { return c.cancelled }

// Confirmed reports whether the user confirmed.
func (c *Checklist) Confirmed() bool { return c.done }
