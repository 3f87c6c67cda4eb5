package core

// Input tracks key state and accumulates scrolling between updates.
type Input struct {
	keys           map[Key]bool
	mouseX, mouseY float64
	scrollX        float64
	scrollY        float64
}

func NewInput() *Input { return &Input{keys: map[Key]bool{}} }

func (in *Input) Handle(ev Event) {
	switch e := ev.(type) {
	case EventKey:
		in.keys[e.Key] = e.Down
	case EventMouseMove:
		in.mouseX, in.mouseY = e.X, e.Y
	case EventScroll:
		in.scrollX += e.Xoff
		in.scrollY += e.Yoff
	}
}

func (in *Input) IsKeyDown(k Key) bool      { return in.keys[k] }
func (in *Input) Mouse() (float64, float64) { return in.mouseX, in.mouseY }

// TakeScroll returns the scrolling since the last call and clears it.
func (in *Input) TakeScroll() (x, y float64) {
	x, y = in.scrollX, in.scrollY
	in.scrollX, in.scrollY = 0, 0
	return x, y
}
