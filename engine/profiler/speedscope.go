//go:build profile

package profiler

import (
	"encoding/json"
	"errors"
	"os"
)

type ssFile struct {
	Schema   string      `json:"$schema"`
	Shared   ssShared    `json:"shared"`
	Profiles []ssProfile `json:"profiles"`
	Exporter string      `json:"exporter,omitempty"`
	Name     string      `json:"name,omitempty"`
}

type ssShared struct {
	Frames []ssFrame `json:"frames"`
}

type ssFrame struct {
	Name string `json:"name"`
}

type ssProfile struct {
	Type       string    `json:"type"` // "evented"
	Name       string    `json:"name"`
	Unit       string    `json:"unit"` // "microseconds"
	StartValue int64     `json:"startValue"`
	EndValue   int64     `json:"endValue"`
	Events     []ssEvent `json:"events"`
}

type ssEvent struct {
	Type  string `json:"type"` // "O" or "C"
	At    int64  `json:"at"`   // µs since first event
	Frame int    `json:"frame"`
}

// balance converts ring events into speedscope events. Closes without a
// matching open (their open fell out of the ring) are dropped and scopes
// still open at the end are closed at the last timestamp.
func balance(evs []event) ([]ssEvent, int64) {
	if len(evs) == 0 {
		return nil, 0
	}
	base := evs[0].at
	var (
		out    = make([]ssEvent, 0, len(evs)+16)
		stack  = make([]int, 0, 64)
		lastUS = int64(0)
	)
	for _, e := range evs {
		atUS := (e.at - base) / 1000
		if atUS < lastUS {
			atUS = lastUS
		}
		if e.open {
			out = append(out, ssEvent{Type: "O", At: atUS, Frame: e.scope})
			stack = append(stack, e.scope)
		} else {
			if len(stack) == 0 || stack[len(stack)-1] != e.scope {
				continue
			}
			stack = stack[:len(stack)-1]
			out = append(out, ssEvent{Type: "C", At: atUS, Frame: e.scope})
		}
		lastUS = atUS
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, ssEvent{Type: "C", At: lastUS, Frame: stack[i]})
	}
	return out, lastUS
}

func writeSpeedscope(evs []event, names []string, path string) error {
	events, endUS := balance(evs)
	if len(events) == 0 {
		return errors.New("profiler: no events to dump")
	}
	fs := make([]ssFrame, len(names))
	for i, n := range names {
		fs[i] = ssFrame{Name: n}
	}
	doc := ssFile{
		Schema: "https://www.speedscope.app/file-format-schema.json",
		Shared: ssShared{Frames: fs},
		Profiles: []ssProfile{{
			Type:     "evented",
			Name:     "terra frames",
			Unit:     "microseconds",
			EndValue: endUS,
			Events:   events,
		}},
		Exporter: "terra-profiler",
		Name:     "terra capture",
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
