package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/two4teezee/limbik/ik"
)

// limbStats tallies solver outcomes for one limb over a run.
type limbStats struct {
	Ticks      int     `json:"ticks"`
	Stretched  int     `json:"stretched"`
	Converged  int     `json:"converged"`
	Iterations int     `json:"iterations"`
	MaxError   float64 `json:"maxError"` // largest end to target distance seen
}

func (st *limbStats) record(res ik.Result) {
	st.Ticks++
	if res.Mode == ik.Stretched {
		st.Stretched++
	}
	if res.Converged {
		st.Converged++
	}
	st.Iterations += res.Iterations
	if d := math.Sqrt(float64(res.DistanceSqr)); d > st.MaxError {
		st.MaxError = round4(d)
	}
}

type posedLimb struct {
	Mode         string       `json:"mode"`
	Joints       []string     `json:"joints"`
	Positions    [][3]float32 `json:"positions"`
	Orientations [][4]float32 `json:"orientations"`
}

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }

// statsKey escapes a limb name for use as a single gjson path element.
func statsKey(name string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(name)
}

// saveStats merges this run into file. Counters accumulate across runs,
// maxError keeps the worst value seen and pose is replaced.
func saveStats(file string, s *System) error {
	data, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read stats: %w", err)
	}
	if len(data) == 0 || !gjson.ValidBytes(data) {
		data = []byte(`{}`)
	}

	err = nil
	set := func(path string, v interface{}) {
		if err == nil {
			data, err = sjson.SetBytes(data, path, v)
		}
	}
	setRaw := func(path string, v interface{}) {
		if err != nil {
			return
		}
		var buf []byte
		if buf, err = json.Marshal(v); err == nil {
			data, err = sjson.SetRawBytes(data, path, buf)
		}
	}

	set("runs", gjson.GetBytes(data, "runs").Int()+1)
	set("ticks", gjson.GetBytes(data, "ticks").Int()+int64(s.tickCount))

	for _, lb := range s.order {
		base := "limbs." + statsKey(lb.props.Name)
		counters := []struct {
			key string
			n   int
		}{
			{"ticks", lb.stats.Ticks},
			{"stretched", lb.stats.Stretched},
			{"converged", lb.stats.Converged},
			{"iterations", lb.stats.Iterations},
		}
		for _, c := range counters {
			cur := gjson.GetBytes(data, base+"."+c.key).Int()
			set(base+"."+c.key, cur+int64(c.n))
		}
		if prev := gjson.GetBytes(data, base+".maxError"); !prev.Exists() || lb.stats.MaxError > prev.Float() {
			set(base+".maxError", lb.stats.MaxError)
		}
		setRaw(base+".last", lb.stats)

		pose := lb.rt.CurrentPose()
		out := posedLimb{Mode: pose.Mode.String(), Joints: lb.rt.Joints()}
		for _, p := range pose.Positions {
			out.Positions = append(out.Positions, [3]float32(p))
		}
		for _, q := range pose.Orientations {
			out.Orientations = append(out.Orientations, [4]float32{q.V[0], q.V[1], q.V[2], q.W})
		}
		setRaw(base+".pose", out)
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(file, data, 0o644)
}
